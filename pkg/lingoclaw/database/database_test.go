package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	cfg := tutor.DatabaseConfig{
		Backend: "sqlite",
		SQLite:  tutor.SQLiteConfig{Path: filepath.Join(t.TempDir(), "lingoclaw.db")},
	}
	b, err := OpenAndMigrate(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	if err := b.Stores().Languages.Upsert(context.Background(), DefaultLanguages...); err != nil {
		t.Fatalf("seed languages: %v", err)
	}
	return b
}

func TestOpen_UnsupportedBackend(t *testing.T) {
	_, err := Open(context.Background(), tutor.DatabaseConfig{Backend: "mysql"}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = ?"

	sqlite := &Backend{Type: BackendSQLite}
	if got := sqlite.rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	pg := &Backend{Type: BackendPostgreSQL}
	if got, want := pg.rebind(query), "SELECT * FROM t WHERE a = $1 AND b = $2"; got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	users := newTestBackend(t).Stores().Users

	if _, err := users.Create(ctx, "u1", "PRO", " JA "); err != nil {
		t.Fatalf("Create: %v", err)
	}

	u, err := users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if u.Tier != tutor.TierPro || u.AppLanguageCode != "ja" || !u.LastResetAt.IsZero() {
		t.Errorf("user = %+v", u)
	}

	reset := time.Date(2026, 3, 14, 9, 30, 0, 123, time.UTC)
	if err := users.SaveBudget(ctx, "u1", tutor.BudgetFields{TokensUsedToday: 420, LastResetAt: reset}); err != nil {
		t.Fatalf("SaveBudget: %v", err)
	}
	u, _ = users.FindByID(ctx, "u1")
	if u.TokensUsedToday != 420 || !u.LastResetAt.Equal(reset) {
		t.Errorf("budget not persisted: %+v", u)
	}

	if err := users.SetTier(ctx, "u1", tutor.TierFree); err != nil {
		t.Fatalf("SetTier: %v", err)
	}
	u, _ = users.FindByID(ctx, "u1")
	if u.Tier != tutor.TierFree {
		t.Errorf("tier = %q, want free", u.Tier)
	}

	list, err := users.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List = %v, %v", list, err)
	}
}

func TestUserStore_Errors(t *testing.T) {
	ctx := context.Background()
	users := newTestBackend(t).Stores().Users

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"find missing", func() error { _, err := users.FindByID(ctx, "ghost"); return err }(), tutor.ErrNotFound},
		{"save budget missing", users.SaveBudget(ctx, "ghost", tutor.BudgetFields{}), tutor.ErrNotFound},
		{"set tier missing", users.SetTier(ctx, "ghost", tutor.TierPro), tutor.ErrNotFound},
		{"set unknown tier", users.SetTier(ctx, "ghost", "gold"), tutor.ErrInvalidArgument},
		{"create unknown tier", func() error { _, err := users.Create(ctx, "x", "gold", "en"); return err }(), tutor.ErrInvalidArgument},
		{"create empty id", func() error { _, err := users.Create(ctx, " ", tutor.TierFree, "en"); return err }(), tutor.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("got %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestLanguageStore(t *testing.T) {
	ctx := context.Background()
	langs := newTestBackend(t).Stores().Languages

	lang, err := langs.FindByCode(ctx, " JA ")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if *lang != (tutor.Language{Code: "ja", Name: "Japanese"}) {
		t.Errorf("lang = %+v", lang)
	}

	if _, err := langs.FindByCode(ctx, "xx"); !errors.Is(err, tutor.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := langs.Upsert(ctx, tutor.Language{Code: "ja", Name: "日本語"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	lang, _ = langs.FindByCode(ctx, "ja")
	if lang.Name != "日本語" {
		t.Errorf("name = %q, want renamed", lang.Name)
	}

	all, err := langs.List(ctx)
	if err != nil || len(all) != len(DefaultLanguages) {
		t.Errorf("List = %d languages, err %v", len(all), err)
	}
}

func TestMessageStore_FindRecent(t *testing.T) {
	ctx := context.Background()
	msgs := newTestBackend(t).Stores().Messages

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var turns []tutor.Turn
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		role := tutor.RoleUser
		if i%2 == 1 {
			role = tutor.RoleAssistant
		}
		turns = append(turns, tutor.Turn{Role: role, Content: content, CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	if err := msgs.Append(ctx, "u1", "JA", turns...); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := msgs.Append(ctx, "u1", "es", tutor.Turn{Role: tutor.RoleUser, Content: "hola"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := msgs.FindRecent(ctx, "u1", "ja", 3)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if diff := cmp.Diff(turns[2:], got); diff != "" {
		t.Errorf("recent turns mismatch (-want +got):\n%s", diff)
	}

	none, err := msgs.FindRecent(ctx, "u1", "ja", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("limit 0 = %v, %v", none, err)
	}

	other, _ := msgs.FindRecent(ctx, "u2", "ja", 10)
	if len(other) != 0 {
		t.Errorf("turns leaked across users: %v", other)
	}
}

func TestSummaryStore(t *testing.T) {
	ctx := context.Background()
	sums := newTestBackend(t).Stores().Summaries

	for _, text := range []string{"first", "second", "third"} {
		if _, err := sums.SaveSummary(ctx, "u1", "ja", text); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
	}

	got, err := sums.FindRecent(ctx, "u1", "ja", 2)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "third" || got[1].Text != "second" {
		t.Errorf("expected newest first, got %+v", got)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Errorf("summary missing id or timestamp: %+v", got[0])
	}
}

func TestNoteStore_DeduplicatesByTitle(t *testing.T) {
	ctx := context.Background()
	notes := newTestBackend(t).Stores().Notes
	summary := "water"

	first, err := notes.SaveNotes(ctx, "u1", []tutor.ExtractedNote{
		{Type: tutor.NoteVocab, Title: "水 (mizu)", Summary: &summary, LearningLanguage: "ja"},
		{Type: tutor.NoteGrammar, Title: "Te-form", LearningLanguage: "ja"},
	})
	if err != nil {
		t.Fatalf("SaveNotes: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("saved %d notes, want 2", len(first))
	}

	second, err := notes.SaveNotes(ctx, "u1", []tutor.ExtractedNote{
		{Type: tutor.NoteGrammar, Title: "TE-FORM", LearningLanguage: "ja"},
		{Type: tutor.NoteGrammar, Title: "Te-form", LearningLanguage: "es"},
		{Type: tutor.NoteOther, Title: "Counters", LearningLanguage: "ja"},
		{Type: tutor.NoteOther, Title: "counters", LearningLanguage: "ja"},
	})
	if err != nil {
		t.Fatalf("SaveNotes: %v", err)
	}
	var titles []string
	for _, n := range second {
		titles = append(titles, n.LearningLanguage+":"+n.Title)
	}
	if diff := cmp.Diff([]string{"es:Te-form", "ja:Counters"}, titles); diff != "" {
		t.Errorf("saved titles mismatch (-want +got):\n%s", diff)
	}

	stored, err := notes.List(ctx, "u1", "ja")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d ja notes, want 3", len(stored))
	}
	for _, n := range stored {
		if n.Title == "水 (mizu)" && (n.Summary == nil || *n.Summary != "water" || n.Content != nil) {
			t.Errorf("nullable fields not preserved: %+v", n)
		}
	}
}

type scriptedCompleter struct {
	reply string
	usage tutor.Usage
	calls int
}

func (c *scriptedCompleter) Complete(_ context.Context, req tutor.CompletionRequest) (*tutor.CompletionOutcome, error) {
	c.calls++
	return &tutor.CompletionOutcome{Reply: c.reply, Model: req.Model, Usage: c.usage}, nil
}

func TestStores_DriveOrchestrator(t *testing.T) {
	ctx := context.Background()
	stores := newTestBackend(t).Stores()
	if _, err := stores.Users.Create(ctx, "u1", tutor.TierFree, "en"); err != nil {
		t.Fatal(err)
	}
	if err := stores.Messages.Append(ctx, "u1", "ja",
		tutor.Turn{Role: tutor.RoleUser, Content: "こんにちは"},
		tutor.Turn{Role: tutor.RoleAssistant, Content: "こんにちは！"},
	); err != nil {
		t.Fatal(err)
	}

	completer := &scriptedCompleter{
		reply: "水 means water.\n---NOTES_JSON---\n" +
			`{"notes":[{"type":"vocab","title":"水 (mizu)","summary":"water","content":"水を飲みます"}]}`,
		usage: tutor.Usage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150},
	}
	deps := stores.Deps()
	deps.Completer = completer

	cfg := tutor.Config{Budget: tutor.BudgetConfig{FreeDailyTokens: 3500}}
	orch := tutor.NewOrchestrator(cfg, deps, slog.New(slog.NewTextHandler(io.Discard, nil)))

	reply, err := orch.GenerateReply(ctx, tutor.ReplyRequest{
		UserID: "u1", LearningLanguage: "ja", Message: "What is 水?",
		Intent: tutor.IntentVocabulary, IncludeContext: true,
	})
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if reply.Text != "水 means water." {
		t.Errorf("Text = %q", reply.Text)
	}

	u, _ := stores.Users.FindByID(ctx, "u1")
	if u.TokensUsedToday != 150 || u.LastResetAt.IsZero() {
		t.Errorf("budget after reply = %+v", u)
	}

	res, err := orch.ExtractNotes(ctx, tutor.NotesRequest{UserID: "u1", LearningLanguage: "ja", Reply: reply.Raw})
	if err != nil {
		t.Fatalf("ExtractNotes: %v", err)
	}
	if len(res.Saved) != 1 {
		t.Errorf("saved %d notes, want 1", len(res.Saved))
	}

	again, err := orch.ExtractNotes(ctx, tutor.NotesRequest{UserID: "u1", LearningLanguage: "ja", Reply: reply.Raw})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Extracted) != 1 || len(again.Saved) != 0 {
		t.Errorf("second extraction: extracted %d saved %d, want 1 and 0", len(again.Extracted), len(again.Saved))
	}
}

func TestBackendHealth(t *testing.T) {
	b := newTestBackend(t)
	status := b.Health.Status(context.Background())
	if !status.Healthy {
		t.Errorf("unhealthy: %s", status.Error)
	}
}
