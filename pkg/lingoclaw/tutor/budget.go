// Package tutor – budget.go implements the per-user daily token budget.
//
// The tracker holds no counters of its own: every call loads the user's
// budget fields from the UserStore, applies the lazy daily reset, and writes
// changes back synchronously. Check and record are two separate store round
// trips, so two concurrent requests from one user can both pass the check
// before either records. Enforcement is therefore soft.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BudgetStatus is the budget view after the lazy reset was applied.
type BudgetStatus struct {
	Allowed   bool
	Tier      Tier
	Limit     int
	Consumed  int
	Remaining int
	ResetAt   time.Time
}

// BudgetTracker enforces per-tier daily token caps.
type BudgetTracker struct {
	users  UserStore
	limits BudgetConfig
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewBudgetTracker creates a tracker over users. loc decides where the day
// boundary falls; nil means UTC.
func NewBudgetTracker(users UserStore, limits BudgetConfig, loc *time.Location, logger *slog.Logger) *BudgetTracker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetTracker{
		users:  users,
		limits: limits,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "budget"),
	}
}

// CheckBudget reports whether estimated more tokens fit in today's budget.
// A request landing exactly on the limit is allowed.
func (t *BudgetTracker) CheckBudget(ctx context.Context, userID string, estimated int) (BudgetStatus, error) {
	status, err := t.Status(ctx, userID)
	if err != nil {
		return BudgetStatus{}, err
	}
	status.Allowed = status.Consumed+estimated <= status.Limit

	t.logger.Debug("budget checked",
		"user", userID,
		"consumed", status.Consumed,
		"estimated", estimated,
		"limit", status.Limit,
		"allowed", status.Allowed,
	)
	return status, nil
}

// RecordUsage adds usage.TotalTokens to today's consumption.
func (t *BudgetTracker) RecordUsage(ctx context.Context, userID string, usage Usage) error {
	user, err := t.load(ctx, userID)
	if err != nil {
		return err
	}

	fields := BudgetFields{
		TokensUsedToday: user.TokensUsedToday + usage.TotalTokens,
		LastResetAt:     user.LastResetAt,
	}
	if err := t.users.SaveBudget(ctx, userID, fields); err != nil {
		return fmt.Errorf("recording token usage: %w", err)
	}

	t.logger.Debug("usage recorded",
		"user", userID,
		"total_tokens", usage.TotalTokens,
		"consumed", fields.TokensUsedToday,
	)
	return nil
}

// Status returns today's budget for userID without checking a request.
// Allowed reports whether any budget is left.
func (t *BudgetTracker) Status(ctx context.Context, userID string) (BudgetStatus, error) {
	user, err := t.load(ctx, userID)
	if err != nil {
		return BudgetStatus{}, err
	}

	limit := t.limits.DailyLimit(user.Tier)
	remaining := limit - user.TokensUsedToday
	if remaining < 0 {
		remaining = 0
	}
	return BudgetStatus{
		Allowed:   remaining > 0,
		Tier:      user.Tier,
		Limit:     limit,
		Consumed:  user.TokensUsedToday,
		Remaining: remaining,
		ResetAt:   t.nextReset(),
	}, nil
}

// load fetches the user and applies the lazy daily reset, persisting it
// before anything else reads the counters.
func (t *BudgetTracker) load(ctx context.Context, userID string) (*User, error) {
	user, err := t.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading budget for user %q: %w", userID, err)
	}
	if user.TokensUsedToday < 0 {
		user.TokensUsedToday = 0
	}

	now := t.now().In(t.loc)
	if !needsReset(user.LastResetAt, now, t.loc) {
		return user, nil
	}

	fields := BudgetFields{TokensUsedToday: 0, LastResetAt: now}
	if err := t.users.SaveBudget(ctx, userID, fields); err != nil {
		return nil, fmt.Errorf("resetting daily budget: %w", err)
	}
	t.logger.Info("daily budget reset",
		"user", userID,
		"previous_consumed", user.TokensUsedToday,
		"last_reset", user.LastResetAt,
	)
	user.TokensUsedToday = 0
	user.LastResetAt = now
	return user, nil
}

func (t *BudgetTracker) nextReset() time.Time {
	y, m, d := t.now().In(t.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.loc)
}

// needsReset reports whether now falls on a later calendar day than
// lastReset in loc. A zero lastReset always needs a reset.
func needsReset(lastReset, now time.Time, loc *time.Location) bool {
	if lastReset.IsZero() {
		return true
	}
	ly, lm, ld := lastReset.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	last := time.Date(ly, lm, ld, 0, 0, 0, 0, loc)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	return today.After(last)
}
