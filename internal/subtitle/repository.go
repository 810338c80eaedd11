package subtitle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository handles subtitle database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new subtitle repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubtitle(s scanner) (*Subtitle, error) {
	sub := &Subtitle{}
	err := s.Scan(
		&sub.ID, &sub.ItemType, &sub.ItemID,
		&sub.LanguageCode, &sub.LanguageName,
		&sub.Format, &sub.FilePath, &sub.FileSize,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create adds or updates a subtitle record (upsert).
func (r *Repository) Create(ctx context.Context, sub *Subtitle) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO subtitles (item_type, item_id, language_code, language_name, format, file_path, file_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT(item_type, item_id, language_code) DO UPDATE SET
		 language_name = EXCLUDED.language_name,
		 format = EXCLUDED.format,
		 file_path = EXCLUDED.file_path,
		 file_size = EXCLUDED.file_size
		 RETURNING id, created_at`,
		sub.ItemType, sub.ItemID, strings.ToLower(sub.LanguageCode), sub.LanguageName,
		sub.Format, sub.FilePath, sub.FileSize,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subtitle: %w", err)
	}
	return nil
}

// GetByItem retrieves all subtitles for a catalog item
func (r *Repository) GetByItem(ctx context.Context, itemType ItemType, itemID int64) ([]*Subtitle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_type, item_id, language_code, language_name, format, file_path, file_size, created_at
		 FROM subtitles WHERE item_type = $1 AND item_id = $2
		 ORDER BY language_code`,
		itemType, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitles for item: %w", err)
	}
	defer rows.Close()

	var subtitles []*Subtitle
	for rows.Next() {
		sub, err := scanSubtitle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtitle: %w", err)
		}
		subtitles = append(subtitles, sub)
	}

	return subtitles, rows.Err()
}

// LanguagesByItem returns the language codes present for every item of a type
func (r *Repository) LanguagesByItem(ctx context.Context, itemType ItemType) (map[int64]map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, language_code FROM subtitles WHERE item_type = $1`,
		itemType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitle languages: %w", err)
	}
	defer rows.Close()

	langs := make(map[int64]map[string]bool)
	for rows.Next() {
		var (
			id   int64
			code string
		)
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("failed to scan subtitle language: %w", err)
		}
		if langs[id] == nil {
			langs[id] = make(map[string]bool)
		}
		langs[id][code] = true
	}
	return langs, rows.Err()
}

// DeleteByItem removes all subtitles for a catalog item
func (r *Repository) DeleteByItem(ctx context.Context, itemType ItemType, itemID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subtitles WHERE item_type = $1 AND item_id = $2`,
		itemType, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete subtitles for item: %w", err)
	}

	return nil
}
