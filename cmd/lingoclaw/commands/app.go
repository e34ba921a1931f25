package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/database"
	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// app bundles what a command needs once the config is loaded.
type app struct {
	cfg    *tutor.Config
	path   string
	logger *slog.Logger
	db     *database.Backend
	stores *database.Stores
	orch   *tutor.Orchestrator
}

// resolveConfig loads the config from --config, then from the usual
// locations, then falls back to defaults.
// Returns (config, configPath, error). configPath is empty for defaults.
func resolveConfig(cmd *cobra.Command) (*tutor.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := tutor.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, configPath, nil
	}

	if found := tutor.FindConfigFile(); found != "" {
		cfg, err := tutor.LoadConfigFromFile(found)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", found, err)
		}
		return cfg, found, nil
	}

	return tutor.LoadDefaultConfig(), "", nil
}

// newLogger builds the slog handler from the logging config. Logs go to
// stderr so command output stays clean on stdout.
func newLogger(cmd *cobra.Command, cfg *tutor.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// openApp loads config, opens the database and, when withTutor is set,
// resolves the API key and builds the orchestrator.
func openApp(cmd *cobra.Command, withTutor bool) (*app, error) {
	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)
	if path == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", path)
	}

	db, err := database.OpenAndMigrate(commandContext(cmd), cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:    cfg,
		path:   path,
		logger: logger,
		db:     db,
		stores: db.Stores(),
	}

	if withTutor {
		tutor.ResolveAPIKey(cfg, logger)
		a.orch = tutor.NewOrchestrator(*cfg, a.stores.Deps(), logger)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// DescribeError turns core errors into messages meant for a learner.
func DescribeError(err error) string {
	var rle *tutor.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Sprintf("daily token budget reached: %d of %d tokens left today, this request needs about %d. Try again tomorrow or upgrade to pro.",
			rle.Remaining, rle.Limit, rle.Requested)
	}

	var pe *tutor.ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case tutor.LLMErrorAuth:
			return "the model provider rejected the API key. Set a new one with: lingoclaw config set-key"
		case tutor.LLMErrorBilling:
			return "the model provider reports a billing or quota problem: " + err.Error()
		}
	}

	switch tutor.KindOf(err) {
	case tutor.KindNotFound:
		return "not found: " + err.Error()
	case tutor.KindInvalidArgument:
		return "invalid input: " + err.Error()
	case tutor.KindProvider:
		return "the tutor is unavailable right now: " + err.Error()
	default:
		return err.Error()
	}
}

// requireFlag returns the trimmed value of a required string flag.
func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}
