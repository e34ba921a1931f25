package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// NoteStore implements tutor.NoteStore. A note whose title matches an
// existing note of the same user and language, ignoring case, is skipped.
type NoteStore struct {
	b *Backend
}

var _ tutor.NoteStore = (*NoteStore)(nil)

// StoredNote is a note as persisted.
type StoredNote struct {
	ID string
	tutor.ExtractedNote
}

// SaveNotes inserts notes and returns the ones that were new.
func (s *NoteStore) SaveNotes(ctx context.Context, userID string, notes []tutor.ExtractedNote) ([]tutor.ExtractedNote, error) {
	if len(notes) == 0 {
		return nil, nil
	}

	tx, err := s.b.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.b.rebind(`
		INSERT INTO notes (id, user_id, learning_language, type, title, title_key, summary, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, learning_language, title_key) DO NOTHING`)

	created := formatTime(s.b.now())
	saved := make([]tutor.ExtractedNote, 0, len(notes))
	for _, n := range notes {
		res, err := tx.ExecContext(ctx, query,
			uuid.NewString(), userID, normalizeCode(n.LearningLanguage), string(n.Type),
			n.Title, titleKey(n.Title), nullString(n.Summary), nullString(n.Content), created,
		)
		if err != nil {
			return nil, fmt.Errorf("insert note %q: %w", n.Title, err)
		}
		if inserted, err := res.RowsAffected(); err == nil && inserted > 0 {
			saved = append(saved, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit notes: %w", err)
	}

	if skipped := len(notes) - len(saved); skipped > 0 {
		s.b.logger.Debug("duplicate notes skipped", "user", userID, "skipped", skipped)
	}
	return saved, nil
}

// List returns the notes of a user in a language, oldest first.
func (s *NoteStore) List(ctx context.Context, userID, language string) ([]StoredNote, error) {
	rows, err := s.b.DB.QueryContext(ctx, s.b.rebind(`
		SELECT id, learning_language, type, title, summary, content FROM notes
		WHERE user_id = ? AND learning_language = ?
		ORDER BY created_at, title`),
		userID, normalizeCode(language),
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []StoredNote
	for rows.Next() {
		var (
			n                StoredNote
			noteType         string
			summary, content sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.LearningLanguage, &noteType, &n.Title, &summary, &content); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Type = tutor.NoteType(noteType)
		n.Summary = stringPtr(summary)
		n.Content = stringPtr(content)
		out = append(out, n)
	}
	return out, rows.Err()
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
