package tutor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func TestExtract_Empty(t *testing.T) {
	e := NewNoteExtractor(discardLogger())

	tests := []struct {
		name string
		raw  string
	}{
		{"no delimiter", "Just a friendly reply."},
		{"empty notes array", "Hi\n---NOTES_JSON---\n{\"notes\":[]}"},
		{"invalid json", "Hi\n---NOTES_JSON---\n{\"notes\": [oops"},
		{"missing notes key", "Hi\n---NOTES_JSON---\n{\"items\":[]}"},
		{"notes is not an array", "Hi\n---NOTES_JSON---\n{\"notes\":\"vocab\"}"},
		{"empty block", "Hi\n---NOTES_JSON---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.raw, "ja")
			if got == nil {
				t.Fatal("Extract returned nil, want empty slice")
			}
			if len(got) != 0 {
				t.Errorf("expected no notes, got %+v", got)
			}
		})
	}
}

func TestExtract_WaterScenario(t *testing.T) {
	raw := "水 means water.\n---NOTES_JSON---\n" +
		`{"notes":[{"type":"vocab","title":"水 (mizu)","summary":"water","content":"水を飲みます"}]}`

	got := NewNoteExtractor(discardLogger()).Extract(raw, "ja")

	want := []ExtractedNote{{
		Type:             NoteVocab,
		Title:            "水 (mizu)",
		Summary:          strPtr("water"),
		Content:          strPtr("水を飲みます"),
		LearningLanguage: "ja",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notes mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_FieldRules(t *testing.T) {
	long := strings.Repeat("A", 80)
	exact := strings.Repeat("é", 60)

	raw := "reply\n---NOTES_JSON---\n{\"notes\":[" +
		`{"type":"  VOCAB  ","title":"normalized type"},` +
		`{"type":"grammar","title":"` + long + `"},` +
		`{"type":"exception","title":"` + exact + `"},` +
		`{"type":"idiom","title":"unknown type"},` +
		`{"type":"other","title":"   "},` +
		`{"type":"other"},` +
		`{"type":"other","title":"blank fields","summary":"  ","content":""},` +
		`{"type":42,"title":"numeric type"},` +
		`"not an object"` +
		"]}"

	got := NewNoteExtractor(discardLogger()).Extract(raw, "es")
	if len(got) != 4 {
		t.Fatalf("expected 4 accepted notes, got %d: %+v", len(got), got)
	}

	if got[0].Type != NoteVocab || got[0].Title != "normalized type" {
		t.Errorf("note 0 = %+v", got[0])
	}
	if got[1].Title != strings.Repeat("A", 60) {
		t.Errorf("long title not truncated to 60: %d chars", utf8.RuneCountInString(got[1].Title))
	}
	if got[2].Title != exact {
		t.Errorf("60-character title should be kept as is, got %q", got[2].Title)
	}
	if got[3].Summary != nil || got[3].Content != nil {
		t.Errorf("blank summary/content should be nil, got %+v", got[3])
	}
	for i, n := range got {
		if n.LearningLanguage != "es" {
			t.Errorf("note %d language = %q, want es", i, n.LearningLanguage)
		}
	}
}

func TestExtract_IgnoresLanguageInPayload(t *testing.T) {
	raw := "x\n---NOTES_JSON---\n" +
		`{"notes":[{"type":"grammar","title":"て-form","learning_language":"fr"}]}`

	got := NewNoteExtractor(discardLogger()).Extract(raw, "ja")
	if len(got) != 1 || got[0].LearningLanguage != "ja" {
		t.Fatalf("got %+v, want one note in ja", got)
	}
}

func TestExtract_CodeFencedBlock(t *testing.T) {
	raw := "Recap\n---NOTES_JSON---\n```json\n" +
		`{"notes":[{"type":"grammar","title":"ser vs estar"}]}` +
		"\n```"

	got := NewNoteExtractor(discardLogger()).Extract(raw, "es")
	if len(got) != 1 || got[0].Title != "ser vs estar" {
		t.Fatalf("got %+v", got)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	raw := "x\n---NOTES_JSON---\n" +
		`{"notes":[{"type":"vocab","title":"a"},{"type":"grammar","title":"b"}]}`
	e := NewNoteExtractor(discardLogger())

	first := e.Extract(raw, "ja")
	second := e.Extract(raw, "ja")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Extract is not deterministic:\n%s", diff)
	}
}
