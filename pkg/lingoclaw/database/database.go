// Package database provides the SQL-backed collaborator stores consumed by
// the tutor orchestration core. SQLite is the default backend, requiring
// zero configuration; PostgreSQL is supported for shared deployments.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/database/backends"
	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// BackendType identifies the type of database backend.
type BackendType string

const (
	BackendSQLite     BackendType = "sqlite"
	BackendPostgreSQL BackendType = "postgresql"
)

// HealthStatus represents the health state of a database backend.
type HealthStatus = backends.HealthStatus

// Migrator applies the schema.
type Migrator interface {
	CurrentVersion(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	NeedsMigration(ctx context.Context) (bool, error)
}

// HealthChecker monitors database health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) HealthStatus
}

// Backend is an open database with its migrator and health checker.
type Backend struct {
	Type     BackendType
	DB       *sql.DB
	Migrator Migrator
	Health   HealthChecker

	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg tutor.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "database")

	backendType := BackendType(strings.ToLower(strings.TrimSpace(cfg.Backend)))
	if backendType == "" {
		backendType = BackendSQLite
	}

	b := &Backend{Type: backendType, logger: logger, now: time.Now}

	switch backendType {
	case BackendSQLite:
		sqlite, err := backends.OpenSQLite(ctx, backends.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			JournalMode: cfg.SQLite.JournalMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			ForeignKeys: true,
		})
		if err != nil {
			return nil, err
		}
		b.DB, b.Migrator, b.Health = sqlite.DB, sqlite.Migrator, sqlite.Health
		logger.Debug("database opened", "backend", backendType, "path", sqlite.Config.Path)

	case BackendPostgreSQL:
		pg, err := backends.OpenPostgreSQL(ctx, backends.PostgreSQLConfig{
			Host:         cfg.PostgreSQL.Host,
			Port:         cfg.PostgreSQL.Port,
			Database:     cfg.PostgreSQL.Database,
			User:         cfg.PostgreSQL.User,
			Password:     cfg.PostgreSQL.Password,
			SSLMode:      cfg.PostgreSQL.SSLMode,
			MaxOpenConns: cfg.PostgreSQL.MaxOpenConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		b.DB, b.Migrator, b.Health = pg.DB, pg.Migrator, pg.Health
		logger.Debug("database opened", "backend", backendType, "host", pg.Config.Host, "database", pg.Config.Database)

	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Backend)
	}

	return b, nil
}

// OpenAndMigrate opens the backend and applies the schema.
func OpenAndMigrate(ctx context.Context, cfg tutor.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	b, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := b.Migrator.Migrate(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.DB.Close()
}

// Stores returns the collaborator stores over this backend.
func (b *Backend) Stores() *Stores {
	return &Stores{
		Users:     &UserStore{b: b},
		Languages: &LanguageStore{b: b},
		Messages:  &MessageStore{b: b},
		Summaries: &SummaryStore{b: b},
		Notes:     &NoteStore{b: b},
	}
}

// Stores groups every collaborator store.
type Stores struct {
	Users     *UserStore
	Languages *LanguageStore
	Messages  *MessageStore
	Summaries *SummaryStore
	Notes     *NoteStore
}

// Deps returns the orchestrator dependencies backed by these stores.
// The completer is left nil so the orchestrator builds its default client.
func (s *Stores) Deps() tutor.Deps {
	return tutor.Deps{
		Users:         s.Users,
		Languages:     s.Languages,
		Messages:      s.Messages,
		Summaries:     s.Summaries,
		SummaryWriter: s.Summaries,
		Notes:         s.Notes,
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (b *Backend) rebind(query string) string {
	if b.Type != BackendPostgreSQL {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand may use plain RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
