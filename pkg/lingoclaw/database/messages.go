package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// MessageStore implements tutor.MessageStore and records chat turns.
type MessageStore struct {
	b *Backend
}

var _ tutor.MessageStore = (*MessageStore)(nil)

// Append stores turns in order for (userID, language). Turns with a zero
// CreatedAt are stamped with the current time.
func (s *MessageStore) Append(ctx context.Context, userID, language string, turns ...tutor.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	language = normalizeCode(language)

	tx, err := s.b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.b.rebind(`
		INSERT INTO messages (user_id, learning_language, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		created := t.CreatedAt
		if created.IsZero() {
			created = s.b.now()
		}
		if _, err := tx.ExecContext(ctx, query, userID, language, string(t.Role), t.Content, formatTime(created)); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// FindRecent returns the last limit turns, oldest first.
func (s *MessageStore) FindRecent(ctx context.Context, userID, language string, limit int) ([]tutor.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.b.DB.QueryContext(ctx, s.b.rebind(`
		SELECT role, content, created_at FROM messages
		WHERE user_id = ? AND learning_language = ?
		ORDER BY id DESC LIMIT ?`),
		userID, normalizeCode(language), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var turns []tutor.Turn
	for rows.Next() {
		var (
			t       tutor.Turn
			role    string
			created string
		)
		if err := rows.Scan(&role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		t.Role = tutor.Role(role)
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("message created_at: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
