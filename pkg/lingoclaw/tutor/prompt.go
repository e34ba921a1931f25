// Package tutor – prompt.go builds the system prompts sent to the provider
// and splits the structured notes block out of model replies. Everything
// here is pure: no state and no I/O.
package tutor

import (
	"fmt"
	"strings"
)

// NotesDelimiter separates the user-facing reply from the JSON notes block.
const NotesDelimiter = "---NOTES_JSON---"

const tutorPromptTemplate = `You are %[1]s, a friendly and patient %[3]s tutor.

The learner's interface language is %[2]s. Explanations, corrections and
meta-commentary must be written in %[2]s. Example sentences, vocabulary and
practice material must be written in %[3]s.

Guidelines:
- Keep the conversation going in natural %[3]s at the learner's level.
- When the learner makes a mistake, quote it, give the corrected form and a short reason.
- Prefer one clear example over a long list.
- Never invent grammar rules; if unsure, say so.
`

const normalDepthInstructions = `
Depth: normal
- Answer in at most 2 short paragraphs.
- Skip etymology and edge cases unless asked.
`

const detailedDepthInstructions = `
Depth: detailed
- Explain the rule, then show 2-3 examples with translations into %[1]s.
- Point out common exceptions and how to recognize them.
`

const notesPromptTemplate = `You are a %[2]s study-note writer. Review the conversation and
produce study notes for what the learner was taught about %[2]s.

Write a short recap in %[1]s first. Then, on its own line, write the
delimiter %[3]s followed by a JSON object with this exact shape:

{"notes":[{"type":"vocab|grammar|exception|other","title":"...","summary":"...","content":"..."}]}

Rules:
- "title" is at most 60 characters.
- "summary" is one sentence in %[1]s.
- "content" holds examples and details.
- Return {"notes":[]} if nothing new was taught.
`

const summaryPromptTemplate = `Condense the conversation below into a short summary (at most
120 words) written in %[1]s. Keep what the learner struggled with, the
vocabulary and grammar covered, and any goals they mentioned. Do not add
greetings or commentary.
`

// BuildSystemPrompt returns the tutoring system prompt for a learner whose
// interface language is appLanguage and who studies targetLanguage.
func BuildSystemPrompt(name, appLanguage, targetLanguage string, depth Depth) string {
	if name == "" {
		name = "LingoClaw"
	}
	var b strings.Builder
	fmt.Fprintf(&b, tutorPromptTemplate, name, appLanguage, targetLanguage)
	if depth.IsDetailed() {
		fmt.Fprintf(&b, detailedDepthInstructions, appLanguage)
	} else {
		b.WriteString(normalDepthInstructions)
	}
	return b.String()
}

// BuildNotesPrompt returns the system prompt for standalone note extraction.
func BuildNotesPrompt(appLanguage, targetLanguage string) string {
	return fmt.Sprintf(notesPromptTemplate, appLanguage, targetLanguage, NotesDelimiter)
}

// BuildSummaryPrompt returns the system prompt used to condense history.
func BuildSummaryPrompt(appLanguage string) string {
	return fmt.Sprintf(summaryPromptTemplate, appLanguage)
}

// SplitNotesBlock splits raw at the first notes delimiter. text is the
// trimmed user-facing part; block is everything after the delimiter.
// ok is false when raw has no delimiter, in which case text is raw trimmed.
func SplitNotesBlock(raw string) (text, block string, ok bool) {
	idx := strings.Index(raw, NotesDelimiter)
	if idx == -1 {
		return strings.TrimSpace(raw), "", false
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(NotesDelimiter):]), true
}

// StripNotesBlock returns raw without its notes block.
func StripNotesBlock(raw string) string {
	text, _, _ := SplitNotesBlock(raw)
	return text
}
