// Package tutor – config.go defines all configuration structures consumed
// by the orchestration core and the CLI that wires it.
package tutor

import (
	"time"
)

// Config holds the complete LingoClaw configuration.
type Config struct {
	// Name is shown in prompts and CLI banners.
	Name string `yaml:"name"`

	// Timezone decides where the daily budget boundary falls (e.g. "America/Sao_Paulo").
	Timezone string `yaml:"timezone"`

	// API configures the completion provider endpoint.
	API APIConfig `yaml:"api"`

	// Models maps the three selection levels to provider model IDs.
	Models ModelsConfig `yaml:"models"`

	// Budget configures the per-tier daily token caps.
	Budget BudgetConfig `yaml:"budget"`

	// Context configures how much history is sent with each call.
	Context ContextConfig `yaml:"context"`

	// Retry configures the provider retry loop.
	Retry RetryConfig `yaml:"retry"`

	// Database configures the collaborator stores.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the OpenAI-compatible provider.
type APIConfig struct {
	// BaseURL is the API root (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey supports ${ENV_VAR} references. Prefer the OS keyring.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds a single HTTP attempt (default: 60).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Temperature is sent when non-zero.
	Temperature float64 `yaml:"temperature"`
}

// ModelsConfig holds the model identifier for each selection level.
type ModelsConfig struct {
	Cheap    string `yaml:"cheap"`
	Standard string `yaml:"standard"`
	Premium  string `yaml:"premium"`
}

// BudgetConfig configures daily token caps.
type BudgetConfig struct {
	// FreeDailyTokens is the daily cap for free users.
	FreeDailyTokens int `yaml:"free_daily_tokens"`

	// ProDailyTokens is the daily cap for pro users.
	ProDailyTokens int `yaml:"pro_daily_tokens"`

	// MaxTokensPerRequest caps the completion size and is reserved up front
	// by the pre-call estimate.
	MaxTokensPerRequest int `yaml:"max_tokens_per_request"`
}

// DailyLimit returns the cap for tier. Unknown tiers get the free cap.
func (b BudgetConfig) DailyLimit(tier Tier) int {
	if tier == TierPro {
		return b.ProDailyTokens
	}
	return b.FreeDailyTokens
}

// ContextConfig sets the history window sizes.
type ContextConfig struct {
	// Summaries is K, the number of most recent summaries rendered.
	Summaries int `yaml:"summaries"`

	// Messages is M, the number of most recent raw turns rendered.
	Messages int `yaml:"messages"`
}

// RetryConfig configures the bounded provider retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, first call included (default: 3).
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoffMs is the delay after the first failure (default: 500).
	// A negative value disables waiting between attempts.
	InitialBackoffMs int `yaml:"initial_backoff_ms"`

	// MaxBackoffMs caps the exponential backoff (default: 4000).
	MaxBackoffMs int `yaml:"max_backoff_ms"`
}

// Backoff returns the delay before the attempt that follows attempt
// (zero-based): min(initial * 2^attempt, max).
func (r RetryConfig) Backoff(attempt int) time.Duration {
	if r.InitialBackoffMs <= 0 {
		return 0
	}
	backoff := time.Duration(r.InitialBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(r.MaxBackoffMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if maxBackoff > 0 && backoff > maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

// DatabaseConfig configures the SQL collaborator stores.
type DatabaseConfig struct {
	// Backend is "sqlite" (default) or "postgresql".
	Backend string `yaml:"backend"`

	// SQLite holds SQLite settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// PostgreSQL holds PostgreSQL settings.
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	JournalMode string `yaml:"journal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PostgreSQLConfig holds PostgreSQL settings.
type PostgreSQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:     "LingoClaw",
		Timezone: "UTC",
		API: APIConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKey:         "${LINGOCLAW_API_KEY}",
			TimeoutSeconds: 60,
		},
		Models: ModelsConfig{
			Cheap:    "gpt-4o-mini",
			Standard: "gpt-4o",
			Premium:  "gpt-4.1",
		},
		Budget: BudgetConfig{
			FreeDailyTokens:     20000,
			ProDailyTokens:      200000,
			MaxTokensPerRequest: 1000,
		},
		Context: ContextConfig{
			Summaries: 3,
			Messages:  10,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 500,
			MaxBackoffMs:     4000,
		},
		Database: DatabaseConfig{
			Backend: "sqlite",
			SQLite: SQLiteConfig{
				Path:        "./data/lingoclaw.db",
				JournalMode: "WAL",
				BusyTimeout: 5000,
			},
			PostgreSQL: PostgreSQLConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Effective returns a copy with defaults applied for zero fields.
func (c Config) Effective() Config {
	def := DefaultConfig()
	out := c
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.Timezone == "" {
		out.Timezone = def.Timezone
	}
	if out.API.BaseURL == "" {
		out.API.BaseURL = def.API.BaseURL
	}
	if out.API.TimeoutSeconds <= 0 {
		out.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if out.Models.Cheap == "" {
		out.Models.Cheap = def.Models.Cheap
	}
	if out.Models.Standard == "" {
		out.Models.Standard = def.Models.Standard
	}
	if out.Models.Premium == "" {
		out.Models.Premium = def.Models.Premium
	}
	if out.Budget.FreeDailyTokens <= 0 {
		out.Budget.FreeDailyTokens = def.Budget.FreeDailyTokens
	}
	if out.Budget.ProDailyTokens <= 0 {
		out.Budget.ProDailyTokens = def.Budget.ProDailyTokens
	}
	if out.Budget.MaxTokensPerRequest <= 0 {
		out.Budget.MaxTokensPerRequest = def.Budget.MaxTokensPerRequest
	}
	if out.Context.Summaries < 0 {
		out.Context.Summaries = 0
	}
	if out.Context.Messages < 0 {
		out.Context.Messages = 0
	}
	if out.Retry.MaxAttempts <= 0 {
		out.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if out.Retry.InitialBackoffMs == 0 {
		out.Retry.InitialBackoffMs = def.Retry.InitialBackoffMs
	}
	if out.Retry.MaxBackoffMs == 0 {
		out.Retry.MaxBackoffMs = def.Retry.MaxBackoffMs
	}
	if out.Database.Backend == "" {
		out.Database.Backend = def.Database.Backend
	}
	if out.Logging.Level == "" {
		out.Logging.Level = def.Logging.Level
	}
	if out.Logging.Format == "" {
		out.Logging.Format = def.Logging.Format
	}
	return out
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
