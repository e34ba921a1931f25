package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// UserStore implements tutor.UserStore and the user administration used
// by the CLI.
type UserStore struct {
	b *Backend
}

var _ tutor.UserStore = (*UserStore)(nil)

// FindByID loads a user. Missing users wrap tutor.ErrNotFound.
func (s *UserStore) FindByID(ctx context.Context, userID string) (*tutor.User, error) {
	var (
		u         tutor.User
		tier      string
		lastReset sql.NullString
	)
	err := s.b.DB.QueryRowContext(ctx, s.b.rebind(`
		SELECT id, tier, app_language_code, tokens_used_today, last_reset_at
		FROM users WHERE id = ?`), userID,
	).Scan(&u.ID, &tier, &u.AppLanguageCode, &u.TokensUsedToday, &lastReset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", userID, tutor.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user %q: %w", userID, err)
	}

	u.Tier = tutor.Tier(tier)
	if lastReset.Valid {
		if u.LastResetAt, err = parseTime(lastReset.String); err != nil {
			return nil, fmt.Errorf("user %q: bad last_reset_at: %w", userID, err)
		}
	}
	return &u, nil
}

// SaveBudget writes the budget counters of a user.
func (s *UserStore) SaveBudget(ctx context.Context, userID string, fields tutor.BudgetFields) error {
	res, err := s.b.DB.ExecContext(ctx, s.b.rebind(
		"UPDATE users SET tokens_used_today = ?, last_reset_at = ? WHERE id = ?"),
		fields.TokensUsedToday, nullableTime(fields.LastResetAt), userID,
	)
	if err != nil {
		return fmt.Errorf("save budget for %q: %w", userID, err)
	}
	return requireOneRow(res, "user", userID)
}

// Create inserts a new user with an empty budget.
func (s *UserStore) Create(ctx context.Context, userID string, tier tutor.Tier, appLanguage string) (*tutor.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is empty: %w", tutor.ErrInvalidArgument)
	}
	parsed, ok := tutor.ParseTier(string(tier))
	if !ok {
		return nil, fmt.Errorf("unknown tier %q: %w", tier, tutor.ErrInvalidArgument)
	}
	code := normalizeCode(appLanguage)
	if code == "" {
		code = "en"
	}

	_, err := s.b.DB.ExecContext(ctx, s.b.rebind(`
		INSERT INTO users (id, tier, app_language_code, tokens_used_today, created_at)
		VALUES (?, ?, ?, 0, ?)`),
		userID, string(parsed), code, formatTime(s.b.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", userID, err)
	}
	s.b.logger.Info("user created", "user", userID, "tier", parsed, "app_language", code)
	return &tutor.User{ID: userID, Tier: parsed, AppLanguageCode: code}, nil
}

// SetTier changes the subscription class of a user.
func (s *UserStore) SetTier(ctx context.Context, userID string, tier tutor.Tier) error {
	parsed, ok := tutor.ParseTier(string(tier))
	if !ok {
		return fmt.Errorf("unknown tier %q: %w", tier, tutor.ErrInvalidArgument)
	}
	res, err := s.b.DB.ExecContext(ctx, s.b.rebind("UPDATE users SET tier = ? WHERE id = ?"), string(parsed), userID)
	if err != nil {
		return fmt.Errorf("set tier for %q: %w", userID, err)
	}
	return requireOneRow(res, "user", userID)
}

// List returns every user ordered by id.
func (s *UserStore) List(ctx context.Context) ([]tutor.User, error) {
	rows, err := s.b.DB.QueryContext(ctx,
		"SELECT id, tier, app_language_code, tokens_used_today, last_reset_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []tutor.User
	for rows.Next() {
		var (
			u         tutor.User
			tier      string
			lastReset sql.NullString
		)
		if err := rows.Scan(&u.ID, &tier, &u.AppLanguageCode, &u.TokensUsedToday, &lastReset); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Tier = tutor.Tier(tier)
		if lastReset.Valid {
			u.LastResetAt, _ = parseTime(lastReset.String)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, tutor.ErrNotFound)
	}
	return nil
}
