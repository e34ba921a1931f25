package tutor

import (
	"context"
	"errors"
	"testing"
	"time"
)

var budgetNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestTracker(users UserStore) *BudgetTracker {
	tr := NewBudgetTracker(users, BudgetConfig{FreeDailyTokens: 3500, ProDailyTokens: 50000}, time.UTC, discardLogger())
	tr.now = func() time.Time { return budgetNow }
	return tr
}

func TestCheckBudget_Boundary(t *testing.T) {
	tests := []struct {
		name      string
		used      int
		requested int
		allowed   bool
	}{
		{"well under", 0, 100, true},
		{"exactly at limit", 3000, 500, true},
		{"one over limit", 3000, 501, false},
		{"already at limit", 3500, 1, false},
		{"zero request at limit", 3500, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: tt.used, LastResetAt: budgetNow.Add(-time.Hour)})
			tr := newTestTracker(users)

			status, err := tr.CheckBudget(context.Background(), "u1", tt.requested)
			if err != nil {
				t.Fatalf("CheckBudget: %v", err)
			}
			if status.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v (used=%d, requested=%d, limit=3500)",
					status.Allowed, tt.allowed, tt.used, tt.requested)
			}
			if status.Limit != 3500 {
				t.Errorf("Limit = %d, want 3500", status.Limit)
			}
		})
	}
}

func TestCheckBudget_TierLimits(t *testing.T) {
	users := newFakeUsers(&User{ID: "pro", Tier: TierPro, LastResetAt: budgetNow})
	tr := newTestTracker(users)

	status, err := tr.CheckBudget(context.Background(), "pro", 40000)
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if !status.Allowed || status.Limit != 50000 {
		t.Errorf("pro status = %+v, want allowed with limit 50000", status)
	}
}

func TestCheckBudget_DailyReset(t *testing.T) {
	tests := []struct {
		name      string
		lastReset time.Time
		wantReset bool
	}{
		{"prior day", budgetNow.AddDate(0, 0, -1), true},
		{"last year", budgetNow.AddDate(-1, 0, 0), true},
		{"never reset", time.Time{}, true},
		{"earlier today", time.Date(2026, 3, 14, 0, 0, 1, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 999999, LastResetAt: tt.lastReset})
			tr := newTestTracker(users)

			status, err := tr.CheckBudget(context.Background(), "u1", 100)
			if err != nil {
				t.Fatalf("CheckBudget: %v", err)
			}

			stored := users.get("u1")
			if tt.wantReset {
				if !status.Allowed || status.Consumed != 0 {
					t.Errorf("status = %+v, want reset to 0 and allowed", status)
				}
				if stored.TokensUsedToday != 0 || !stored.LastResetAt.Equal(budgetNow) {
					t.Errorf("reset not persisted: %+v", stored)
				}
			} else {
				if status.Allowed {
					t.Error("expected over-budget user to stay blocked on the same day")
				}
				if users.saves != 0 {
					t.Errorf("expected no writes, got %d", users.saves)
				}
			}
		})
	}
}

func TestCheckBudget_ResetUsesConfiguredTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	// 01:00 UTC on the 15th is still the 14th in UTC-3.
	last := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 3500, LastResetAt: last})
	tr := NewBudgetTracker(users, BudgetConfig{FreeDailyTokens: 3500}, loc, discardLogger())
	tr.now = func() time.Time { return time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC) }

	status, err := tr.CheckBudget(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if status.Allowed {
		t.Error("expected no reset before local midnight")
	}
}

func TestCheckBudget_UserNotFound(t *testing.T) {
	tr := newTestTracker(newFakeUsers())

	_, err := tr.CheckBudget(context.Background(), "ghost", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindNotFound)
	}
}

func TestRecordUsage(t *testing.T) {
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 200, LastResetAt: budgetNow})
	tr := newTestTracker(users)

	if err := tr.RecordUsage(context.Background(), "u1", Usage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if got := users.get("u1").TokensUsedToday; got != 350 {
		t.Errorf("TokensUsedToday = %d, want 350", got)
	}
}

func TestRecordUsage_UnsetCounterStartsAtZero(t *testing.T) {
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, LastResetAt: budgetNow})
	tr := newTestTracker(users)

	if err := tr.RecordUsage(context.Background(), "u1", Usage{TotalTokens: 42}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if got := users.get("u1").TokensUsedToday; got != 42 {
		t.Errorf("TokensUsedToday = %d, want 42", got)
	}
}

func TestRecordUsage_StaleDayResetsFirst(t *testing.T) {
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 3000, LastResetAt: budgetNow.AddDate(0, 0, -2)})
	tr := newTestTracker(users)

	if err := tr.RecordUsage(context.Background(), "u1", Usage{TotalTokens: 10}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if got := users.get("u1").TokensUsedToday; got != 10 {
		t.Errorf("TokensUsedToday = %d, want 10", got)
	}
}

// Check and record are separate round trips. Two requests that both pass
// the check before either records can push consumption past the limit.
// This is the accepted soft-enforcement behavior.
func TestBudget_CheckThenRecordIsNotAtomic(t *testing.T) {
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 3000, LastResetAt: budgetNow})
	tr := newTestTracker(users)
	ctx := context.Background()

	first, err := tr.CheckBudget(ctx, "u1", 400)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.CheckBudget(ctx, "u1", 400)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Allowed || !second.Allowed {
		t.Fatalf("both checks should pass before any usage is recorded")
	}

	_ = tr.RecordUsage(ctx, "u1", Usage{TotalTokens: 400})
	_ = tr.RecordUsage(ctx, "u1", Usage{TotalTokens: 400})

	if got := users.get("u1").TokensUsedToday; got != 3800 {
		t.Errorf("TokensUsedToday = %d, want 3800 (limit overshoot is expected)", got)
	}
}

func TestBudgetStatus_Remaining(t *testing.T) {
	users := newFakeUsers(&User{ID: "u1", Tier: TierFree, TokensUsedToday: 4000, LastResetAt: budgetNow})
	tr := newTestTracker(users)

	status, err := tr.Status(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Remaining != 0 || status.Allowed {
		t.Errorf("status = %+v, want remaining 0 and not allowed", status)
	}
	wantReset := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !status.ResetAt.Equal(wantReset) {
		t.Errorf("ResetAt = %v, want %v", status.ResetAt, wantReset)
	}
}
