// Package tutor – loader.go handles loading configuration from YAML files
// with credentials supplied through environment variables and .env files.
package tutor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR.
//
// Capture groups:
//   - Group 1: Variable name (for ${} syntax)
//   - Group 2: Modifier type ("-" for default, "?" for error)
//   - Group 3: Default value or error message
//   - Group 4: Variable name (for bare $VAR syntax)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Loads .env files first and expands environment variables.
// Returns an error if any ${VAR:?error} pattern has its variable unset.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	resolveRelativePaths(cfg, path)

	return cfg, nil
}

// LoadDefaultConfig returns the defaults with secrets taken from the
// environment and .env files. Used when no config file exists.
func LoadDefaultConfig() *Config {
	loadEnvFiles()
	cfg := DefaultConfig().Effective()
	resolveSecrets(&cfg)
	return &cfg
}

// ParseConfig parses YAML bytes into a Config.
// Starts with defaults and overlays values from the YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	eff := cfg.Effective()
	return &eff, nil
}

// SaveConfigToFile writes cfg as YAML. The API key is replaced with an
// environment reference so secrets never land on disk.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	if sanitized.API.APIKey != "" && !IsEnvReference(sanitized.API.APIKey) {
		sanitized.API.APIKey = "${" + envAPIKey + "}"
	}

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// FindConfigFile looks for a config file in the usual locations.
// Returns "" when none exists.
func FindConfigFile() string {
	candidates := []string{
		"lingoclaw.yaml",
		"lingoclaw.yml",
		"config.yaml",
		"config.yml",
		"configs/lingoclaw.yaml",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// IsEnvReference reports whether value is an unexpanded ${VAR} placeholder.
func IsEnvReference(value string) bool {
	return strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}")
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		// godotenv.Load does NOT overwrite existing env vars.
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error}, and $VAR
// references with their environment values. Unset variables without a
// modifier keep their placeholder. An unset ${VAR:?error} is replaced by an
// "ERROR:VAR:message" marker picked up by expandEnvVarsWithValidation.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName, modifier, value, bareVar := sub[1], sub[2], sub[3], sub[4]

		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		switch modifier {
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			return "ERROR:" + varName + ":" + value
		case "-":
			return value
		default:
			return match
		}
	})
}

func expandEnvVarsWithValidation(input string) (string, error) {
	result := expandEnvVars(input)
	idx := strings.Index(result, "ERROR:")
	if idx == -1 {
		return result, nil
	}

	rest := result[idx+len("ERROR:"):]
	colon := strings.Index(rest, ":")
	if colon == -1 {
		return "", fmt.Errorf("config error: malformed error marker")
	}
	varName := rest[:colon]
	msg := rest[colon+1:]
	if nl := strings.IndexAny(msg, "\r\n"); nl != -1 {
		msg = msg[:nl]
	}
	return "", fmt.Errorf("config error: %s - %s", varName, strings.Trim(msg, `"' `))
}

// resolveSecrets fills the API key from the environment when the config
// value is empty or still a placeholder.
func resolveSecrets(cfg *Config) {
	if cfg.API.APIKey != "" && !IsEnvReference(cfg.API.APIKey) {
		return
	}
	for _, name := range []string{envAPIKey, "OPENAI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.API.APIKey = key
			return
		}
	}
}

// resolveRelativePaths makes the SQLite path relative to the config file.
func resolveRelativePaths(cfg *Config, configPath string) {
	p := cfg.Database.SQLite.Path
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return
	}
	cfg.Database.SQLite.Path = filepath.Join(filepath.Dir(configPath), p)
}
