package tutor

import "context"

// UserStore resolves users and persists their budget counters.
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*User, error)
	SaveBudget(ctx context.Context, userID string, fields BudgetFields) error
}

// LanguageStore resolves supported languages by code.
type LanguageStore interface {
	FindByCode(ctx context.Context, code string) (*Language, error)
}

// MessageStore returns the most recent turns, oldest first.
type MessageStore interface {
	FindRecent(ctx context.Context, userID, language string, limit int) ([]Turn, error)
}

// SummaryStore returns the most recent summaries, newest first.
type SummaryStore interface {
	FindRecent(ctx context.Context, userID, language string, limit int) ([]ConversationSummary, error)
}

// SummaryWriter persists a freshly condensed summary.
type SummaryWriter interface {
	SaveSummary(ctx context.Context, userID, language, text string) (*ConversationSummary, error)
}

// NoteStore takes ownership of extracted notes. It may deduplicate and
// returns the notes that were actually stored.
type NoteStore interface {
	SaveNotes(ctx context.Context, userID string, notes []ExtractedNote) ([]ExtractedNote, error)
}
