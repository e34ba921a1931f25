package tutor

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBuildContext_DisabledTouchesNoStore(t *testing.T) {
	langs := newFakeLanguages()
	msgs := &fakeMessages{turns: []Turn{{Role: RoleUser, Content: "hi"}}}
	sums := &fakeSummaries{summaries: []ConversationSummary{{Text: "old"}}}
	a := NewContextAssembler(langs, msgs, sums, ContextConfig{Summaries: 3, Messages: 10}, discardLogger())

	transcript, err := a.BuildContext(context.Background(), "u1", "ja", false)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(transcript) != 0 {
		t.Errorf("expected empty transcript, got %d turns", len(transcript))
	}
	if langs.calls != 0 || msgs.calls != 0 || sums.calls != 0 {
		t.Errorf("expected zero store calls, got languages=%d messages=%d summaries=%d",
			langs.calls, msgs.calls, sums.calls)
	}
}

func TestBuildContext_SummariesFirstInChronologicalOrder(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	msgs := &fakeMessages{turns: []Turn{
		{Role: RoleUser, Content: "こんにちは", CreatedAt: t0.Add(3 * time.Hour)},
		{Role: RoleAssistant, Content: "こんにちは！", CreatedAt: t0.Add(3*time.Hour + time.Minute)},
	}}
	sums := &fakeSummaries{summaries: []ConversationSummary{
		{Text: "newest", CreatedAt: t0.Add(2 * time.Hour)},
		{Text: "older", CreatedAt: t0.Add(time.Hour)},
	}}
	a := NewContextAssembler(newFakeLanguages(), msgs, sums, ContextConfig{Summaries: 3, Messages: 10}, discardLogger())

	got, err := a.BuildContext(context.Background(), "u1", "ja", true)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	want := []Turn{
		{Role: RoleSystem, Content: summaryPrefix + "older", CreatedAt: t0.Add(time.Hour)},
		{Role: RoleSystem, Content: summaryPrefix + "newest", CreatedAt: t0.Add(2 * time.Hour)},
		{Role: RoleUser, Content: "こんにちは", CreatedAt: t0.Add(3 * time.Hour)},
		{Role: RoleAssistant, Content: "こんにちは！", CreatedAt: t0.Add(3*time.Hour + time.Minute)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildContext_RespectsWindow(t *testing.T) {
	var turns []Turn
	for i := 0; i < 30; i++ {
		turns = append(turns, Turn{Role: RoleUser, Content: "m"})
	}
	msgs := &fakeMessages{turns: turns}
	sums := &fakeSummaries{}
	a := NewContextAssembler(newFakeLanguages(), msgs, sums, ContextConfig{Summaries: 2, Messages: 5}, discardLogger())

	got, err := a.BuildContext(context.Background(), "u1", "es", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 turns, got %d", len(got))
	}
	if msgs.lastLimit != 5 {
		t.Errorf("messages limit = %d, want 5", msgs.lastLimit)
	}
}

func TestBuildContext_LanguageFailureDegradesToEmpty(t *testing.T) {
	langs := newFakeLanguages()
	msgs := &fakeMessages{turns: []Turn{{Role: RoleUser, Content: "hi"}}}
	sums := &fakeSummaries{}
	a := NewContextAssembler(langs, msgs, sums, ContextConfig{Summaries: 3, Messages: 10}, discardLogger())

	got, err := a.BuildContext(context.Background(), "u1", "xx", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty transcript, got %v", got)
	}
	if msgs.calls != 0 {
		t.Errorf("expected no message fetch after language failure, got %d", msgs.calls)
	}
}

func TestBuildContext_StoreFailureDegradesToEmpty(t *testing.T) {
	msgs := &fakeMessages{err: errBoom}
	sums := &fakeSummaries{summaries: []ConversationSummary{{Text: "old"}}}
	a := NewContextAssembler(newFakeLanguages(), msgs, sums, ContextConfig{Summaries: 3, Messages: 10}, discardLogger())

	got, err := a.BuildContext(context.Background(), "u1", "ja", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty transcript, got %v", got)
	}
}
