package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// SummaryStore implements tutor.SummaryStore and tutor.SummaryWriter.
type SummaryStore struct {
	b *Backend
}

var (
	_ tutor.SummaryStore  = (*SummaryStore)(nil)
	_ tutor.SummaryWriter = (*SummaryStore)(nil)
)

// FindRecent returns the last limit summaries, newest first.
func (s *SummaryStore) FindRecent(ctx context.Context, userID, language string, limit int) ([]tutor.ConversationSummary, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.b.DB.QueryContext(ctx, s.b.rebind(`
		SELECT id, text, created_at FROM summaries
		WHERE user_id = ? AND learning_language = ?
		ORDER BY id DESC LIMIT ?`),
		userID, normalizeCode(language), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []tutor.ConversationSummary
	for rows.Next() {
		var (
			id      int64
			sum     tutor.ConversationSummary
			created string
		)
		if err := rows.Scan(&id, &sum.Text, &created); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.ID = strconv.FormatInt(id, 10)
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("summary created_at: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SaveSummary stores a new summary and returns it with its ID.
func (s *SummaryStore) SaveSummary(ctx context.Context, userID, language, text string) (*tutor.ConversationSummary, error) {
	created := s.b.now()
	var id int64
	err := s.b.DB.QueryRowContext(ctx, s.b.rebind(`
		INSERT INTO summaries (user_id, learning_language, text, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		userID, normalizeCode(language), text, formatTime(created),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	return &tutor.ConversationSummary{
		ID:        strconv.FormatInt(id, 10),
		Text:      text,
		CreatedAt: created.UTC(),
	}, nil
}
