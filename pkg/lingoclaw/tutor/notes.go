// Package tutor – notes.go parses the structured notes block appended to a
// model reply into validated study notes.
package tutor

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MaxNoteTitleLength is the longest title kept, in characters.
const MaxNoteTitleLength = 60

var validNoteTypes = map[NoteType]bool{
	NoteVocab:     true,
	NoteGrammar:   true,
	NoteException: true,
	NoteOther:     true,
}

// rawNote is decoded loosely so one bad field does not reject the block.
type rawNote struct {
	Type    any `json:"type"`
	Title   any `json:"title"`
	Summary any `json:"summary"`
	Content any `json:"content"`
}

type rawNotesBlock struct {
	Notes *[]json.RawMessage `json:"notes"`
}

// NoteExtractor turns raw replies into notes. It never fails: malformed
// input yields an empty result.
type NoteExtractor struct {
	logger *slog.Logger
}

// NewNoteExtractor creates an extractor.
func NewNoteExtractor(logger *slog.Logger) *NoteExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteExtractor{logger: logger.With("component", "notes")}
}

// Extract parses the notes block of rawReply. Every accepted note carries
// learningLanguage, whatever the JSON says.
func (e *NoteExtractor) Extract(rawReply, learningLanguage string) []ExtractedNote {
	_, block, ok := SplitNotesBlock(rawReply)
	if !ok {
		return []ExtractedNote{}
	}
	block = trimCodeFence(block)

	var parsed rawNotesBlock
	if err := json.NewDecoder(strings.NewReader(block)).Decode(&parsed); err != nil {
		e.logger.Debug("notes block is not valid JSON", "error", err)
		return []ExtractedNote{}
	}
	if parsed.Notes == nil {
		e.logger.Debug("notes block has no notes array")
		return []ExtractedNote{}
	}

	notes := make([]ExtractedNote, 0, len(*parsed.Notes))
	skipped := 0
	for _, item := range *parsed.Notes {
		note, ok := parseNote(item, learningLanguage)
		if !ok {
			skipped++
			continue
		}
		notes = append(notes, note)
	}

	if skipped > 0 {
		e.logger.Debug("skipped invalid notes", "skipped", skipped, "accepted", len(notes))
	}
	return notes
}

func parseNote(item json.RawMessage, learningLanguage string) (ExtractedNote, bool) {
	var raw rawNote
	if err := json.Unmarshal(item, &raw); err != nil {
		return ExtractedNote{}, false
	}

	noteType := NoteType(strings.ToLower(strings.TrimSpace(asString(raw.Type))))
	if !validNoteTypes[noteType] {
		return ExtractedNote{}, false
	}

	title := strings.TrimSpace(asString(raw.Title))
	if title == "" {
		return ExtractedNote{}, false
	}

	return ExtractedNote{
		Type:             noteType,
		Title:            truncateRunes(title, MaxNoteTitleLength),
		Summary:          nullIfBlank(asString(raw.Summary)),
		Content:          nullIfBlank(asString(raw.Content)),
		LearningLanguage: learningLanguage,
	}, true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func nullIfBlank(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// trimCodeFence removes a ```json fence some models wrap the block in.
func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
