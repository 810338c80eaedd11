package library

import (
	"context"
	"database/sql"
	"fmt"
)

// VideoRepository handles movie file rows
type VideoRepository struct {
	db Querier
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db Querier) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, media_id, remote_location_id, file_name, size_bytes, created_at`

func scanVideo(s interface{ Scan(...any) error }) (*Video, error) {
	v := &Video{}
	if err := s.Scan(&v.ID, &v.MediaID, &v.RemoteLocationID, &v.FileName, &v.SizeBytes, &v.CreatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

// Create records a movie file
func (r *VideoRepository) Create(ctx context.Context, v *Video) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO videos (media_id, remote_location_id, file_name, size_bytes)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		v.MediaID, v.RemoteLocationID, v.FileName, v.SizeBytes,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetByMedia returns the files of a movie
func (r *VideoRepository) GetByMedia(ctx context.Context, mediaID int64) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE media_id = $1 ORDER BY id`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// GetByLocation returns the video stored at a remote location, or nil
func (r *VideoRepository) GetByLocation(ctx context.Context, locationID string) (*Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE remote_location_id = $1`, locationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// Relocate points an existing video row at a different remote file
func (r *VideoRepository) Relocate(ctx context.Context, id int64, locationID, fileName string, size int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE videos SET remote_location_id = $1, file_name = $2, size_bytes = $3 WHERE id = $4`,
		locationID, fileName, size, id,
	)
	if err != nil {
		return fmt.Errorf("failed to relocate video: %w", err)
	}
	return expectAffected(result, ErrVideoNotFound)
}

// Delete removes a video row
func (r *VideoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return expectAffected(result, ErrVideoNotFound)
}

// ListIDs returns the ids of every movie file
func (r *VideoRepository) ListIDs(ctx context.Context) ([]int64, error) {
	return listIDs(ctx, r.db, `SELECT id FROM videos ORDER BY id`)
}

// Count returns the number of movie files
func (r *VideoRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return n, nil
}

func listIDs(ctx context.Context, db Querier, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
