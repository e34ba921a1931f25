// Package tutor – keyring.go provides API key storage in the operating
// system's native keyring (Linux: Secret Service, macOS: Keychain,
// Windows: Credential Manager).
//
// Priority for resolving the provider API key:
//  1. OS keyring
//  2. Environment variable (LINGOCLAW_API_KEY, OPENAI_API_KEY)
//  3. .env file (loaded by godotenv)
//  4. config.yaml value
package tutor

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "lingoclaw"
	keyringAPIKey  = "api_key"

	envAPIKey = "LINGOCLAW_API_KEY"
)

// StoreAPIKey saves the provider API key in the OS keyring.
func StoreAPIKey(value string) error {
	if err := keyring.Set(keyringService, keyringAPIKey, value); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the provider API key from the OS keyring.
func DeleteAPIKey() error {
	return keyring.Delete(keyringService, keyringAPIKey)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__lingoclaw_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveAPIKey updates cfg.API.APIKey in place using keyring → env → config.
// Env and .env values were already applied by LoadConfigFromFile.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if val, err := keyring.Get(keyringService, keyringAPIKey); err == nil && val != "" {
		cfg.API.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return
	}

	if cfg.API.APIKey != "" && !IsEnvReference(cfg.API.APIKey) {
		logger.Debug("API key loaded from config/env")
		return
	}

	cfg.API.APIKey = ""
	logger.Warn("no API key found. Set one with: lingoclaw config set-key")
}
