package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]*User
	saves   int
	findErr error
	saveErr error
}

func newFakeUsers(users ...*User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, userID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, notFound("user %q", userID)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SaveBudget(_ context.Context, userID string, fields BudgetFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	u, ok := f.users[userID]
	if !ok {
		return notFound("user %q", userID)
	}
	u.TokensUsedToday = fields.TokensUsedToday
	u.LastResetAt = fields.LastResetAt
	f.saves++
	return nil
}

func (f *fakeUsers) get(userID string) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[userID]
}

type fakeLanguages struct {
	langs map[string]string
	err   error
	calls int
}

func newFakeLanguages() *fakeLanguages {
	return &fakeLanguages{langs: map[string]string{
		"en": "English",
		"ja": "Japanese",
		"es": "Spanish",
	}}
}

func (f *fakeLanguages) FindByCode(_ context.Context, code string) (*Language, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	name, ok := f.langs[strings.ToLower(code)]
	if !ok {
		return nil, notFound("language %q", code)
	}
	return &Language{Code: strings.ToLower(code), Name: name}, nil
}

type fakeMessages struct {
	mu        sync.Mutex
	turns     []Turn
	err       error
	calls     int
	lastLimit int
}

func (f *fakeMessages) FindRecent(_ context.Context, _, _ string, limit int) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.turns) > limit {
		return f.turns[len(f.turns)-limit:], nil
	}
	return f.turns, nil
}

type fakeSummaries struct {
	mu        sync.Mutex
	summaries []ConversationSummary // newest first
	err       error
	calls     int
	saved     []string
}

func (f *fakeSummaries) FindRecent(_ context.Context, _, _ string, limit int) ([]ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.summaries) > limit {
		return f.summaries[:limit], nil
	}
	return f.summaries, nil
}

func (f *fakeSummaries) SaveSummary(_ context.Context, _, _, text string) (*ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, text)
	return &ConversationSummary{ID: "s1", Text: text}, nil
}

type fakeNotes struct {
	saved []ExtractedNote
}

func (f *fakeNotes) SaveNotes(_ context.Context, _ string, notes []ExtractedNote) ([]ExtractedNote, error) {
	f.saved = append(f.saved, notes...)
	return notes, nil
}

type fakeCompleter struct {
	outcome *CompletionOutcome
	err     error
	calls   int
	last    CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (*CompletionOutcome, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.Model = req.Model
	return &out, nil
}

var errBoom = errors.New("boom")
