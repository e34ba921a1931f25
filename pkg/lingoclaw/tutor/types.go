// Package tutor – types.go defines the value types that flow through the
// orchestration core. None of them outlive a single orchestration call;
// persistence belongs to the collaborator stores.
package tutor

import (
	"strings"
	"time"
)

// Tier is the user subscription class.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier normalizes a raw tier value. The second result is false when the
// tier is not recognized.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierFree:
		return TierFree, true
	case TierPro:
		return TierPro, true
	default:
		return "", false
	}
}

// Intent classifies the purpose of a user message.
type Intent string

const (
	IntentCasualChat         Intent = "casual_chat"
	IntentGrammarExplanation Intent = "grammar_explanation"
	IntentVocabulary         Intent = "vocabulary"
	IntentCorrectionRequest  Intent = "correction_request"
)

// IsEducational reports whether the intent biases model selection toward
// a stronger model. Empty or unknown intents are not educational.
func (i Intent) IsEducational() bool {
	switch Intent(strings.ToLower(strings.TrimSpace(string(i)))) {
	case IntentGrammarExplanation, IntentVocabulary, IntentCorrectionRequest:
		return true
	default:
		return false
	}
}

// Depth is the requested explanation verbosity.
type Depth string

const (
	DepthNormal   Depth = "normal"
	DepthDetailed Depth = "detailed"
)

// IsDetailed reports whether depth asks for a detailed explanation.
func (d Depth) IsDetailed() bool {
	return Depth(strings.ToLower(strings.TrimSpace(string(d)))) == DepthDetailed
}

// Role tags a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry of a conversation transcript.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ConversationSummary is a condensed slice of older history.
type ConversationSummary struct {
	ID        string
	Text      string
	CreatedAt time.Time
}

// User is the subset of the user record the core needs.
type User struct {
	ID              string
	Tier            Tier
	AppLanguageCode string

	// TokensUsedToday is the consumed budget for the current day.
	TokensUsedToday int
	// LastResetAt is the last time TokensUsedToday was reset. Zero means never.
	LastResetAt time.Time
}

// BudgetFields are the user fields written back by the budget tracker.
type BudgetFields struct {
	TokensUsedToday int
	LastResetAt     time.Time
}

// Language is a supported language.
type Language struct {
	Code string
	Name string
}

// Usage holds token counters reported by the provider. Zero values are a
// valid outcome when the provider omits usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is built once per provider call.
type CompletionRequest struct {
	SystemPrompt string
	Transcript   []Turn
	Model        string
}

// CompletionOutcome is the result of a successful provider call.
type CompletionOutcome struct {
	Reply string
	Model string
	Usage Usage
}

// NoteType is the category of an extracted study note.
type NoteType string

const (
	NoteVocab     NoteType = "vocab"
	NoteGrammar   NoteType = "grammar"
	NoteException NoteType = "exception"
	NoteOther     NoteType = "other"
)

// ExtractedNote is a validated study note parsed from a model reply.
// Summary and Content are nil when the model left them blank.
type ExtractedNote struct {
	Type             NoteType
	Title            string
	Summary          *string
	Content          *string
	LearningLanguage string
}
