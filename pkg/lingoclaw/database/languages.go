package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// DefaultLanguages are seeded by `lingoclaw migrate`.
var DefaultLanguages = []tutor.Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
}

// LanguageStore implements tutor.LanguageStore.
type LanguageStore struct {
	b *Backend
}

var _ tutor.LanguageStore = (*LanguageStore)(nil)

// FindByCode looks a language up by its case-insensitive code.
func (s *LanguageStore) FindByCode(ctx context.Context, code string) (*tutor.Language, error) {
	code = normalizeCode(code)
	var lang tutor.Language
	err := s.b.DB.QueryRowContext(ctx, s.b.rebind("SELECT code, name FROM languages WHERE code = ?"), code).
		Scan(&lang.Code, &lang.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("language %q: %w", code, tutor.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query language %q: %w", code, err)
	}
	return &lang, nil
}

// Upsert inserts the languages or renames existing ones.
func (s *LanguageStore) Upsert(ctx context.Context, langs ...tutor.Language) error {
	tx, err := s.b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.b.rebind(`
		INSERT INTO languages (code, name) VALUES (?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name`)
	for _, l := range langs {
		code := normalizeCode(l.Code)
		if code == "" || l.Name == "" {
			return fmt.Errorf("language %+v: %w", l, tutor.ErrInvalidArgument)
		}
		if _, err := tx.ExecContext(ctx, query, code, l.Name); err != nil {
			return fmt.Errorf("upsert language %q: %w", code, err)
		}
	}
	return tx.Commit()
}

// List returns every supported language ordered by code.
func (s *LanguageStore) List(ctx context.Context) ([]tutor.Language, error) {
	rows, err := s.b.DB.QueryContext(ctx, "SELECT code, name FROM languages ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var langs []tutor.Language
	for rows.Next() {
		var l tutor.Language
		if err := rows.Scan(&l.Code, &l.Name); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}
