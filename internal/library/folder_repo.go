package library

import (
	"context"
	"fmt"
)

// FolderRepository handles show folder rows
type FolderRepository struct {
	db Querier
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db Querier) *FolderRepository {
	return &FolderRepository{db: db}
}

// Create records a show folder
func (r *FolderRepository) Create(ctx context.Context, f *Folder) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO folders (media_id, remote_location_id, name) VALUES ($1, $2, $3) RETURNING id, created_at`,
		f.MediaID, f.RemoteLocationID, f.Name,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// GetByMedia returns every folder attached to a show
func (r *FolderRepository) GetByMedia(ctx context.Context, mediaID int64) ([]*Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, media_id, remote_location_id, name, created_at FROM folders WHERE media_id = $1 ORDER BY id`,
		mediaID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		f := &Folder{}
		if err := rows.Scan(&f.ID, &f.MediaID, &f.RemoteLocationID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// Count returns the number of show folders
func (r *FolderRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return n, nil
}
