package library

import (
	"context"
	"database/sql"
	"fmt"
)

// EpisodeRepository handles episode file rows
type EpisodeRepository struct {
	db Querier
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db Querier) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// ListByShow returns the persisted episodes of a show ordered by season and number
func (r *EpisodeRepository) ListByShow(ctx context.Context, showID int64) ([]*Episode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, show_id, season_number, episode_number, remote_video_id, file_name, size_bytes,
		       title, overview, still_url, created_at, updated_at
		FROM episodes WHERE show_id = $1
		ORDER BY season_number, episode_number`,
		showID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		e := &Episode{}
		var title, overview, still sql.NullString
		if err := rows.Scan(&e.ID, &e.ShowID, &e.SeasonNumber, &e.EpisodeNumber, &e.RemoteVideoID,
			&e.FileName, &e.SizeBytes, &title, &overview, &still, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		e.Title = title.String
		e.Overview = overview.String
		e.StillURL = still.String
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// CountByShow returns how many episodes are persisted for a show
func (r *EpisodeRepository) CountByShow(ctx context.Context, showID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes WHERE show_id = $1`, showID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return n, nil
}

// Create records an episode file
func (r *EpisodeRepository) Create(ctx context.Context, e *Episode) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO episodes (show_id, season_number, episode_number, remote_video_id, file_name, size_bytes,
		                      title, overview, still_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		e.ShowID, e.SeasonNumber, e.EpisodeNumber, e.RemoteVideoID, e.FileName, e.SizeBytes,
		nullString(e.Title), nullString(e.Overview), nullString(e.StillURL),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create episode S%02dE%02d: %w", e.SeasonNumber, e.EpisodeNumber, err)
	}
	return nil
}

// UpdateMetadata rewrites the descriptive fields of an episode. The file
// reference is never changed here.
func (r *EpisodeRepository) UpdateMetadata(ctx context.Context, e *Episode) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE episodes SET title = $1, overview = $2, still_url = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		nullString(e.Title), nullString(e.Overview), nullString(e.StillURL), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return expectAffected(result, ErrEpisodeNotFound)
}

// Delete removes an episode row
func (r *EpisodeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	return expectAffected(result, ErrEpisodeNotFound)
}

// ListIDs returns the ids of every episode file
func (r *EpisodeRepository) ListIDs(ctx context.Context) ([]int64, error) {
	return listIDs(ctx, r.db, `SELECT id FROM episodes ORDER BY id`)
}

// Count returns total and placeholder episode counts
func (r *EpisodeRepository) Count(ctx context.Context) (total, placeholders int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN title IS NULL THEN 1 ELSE 0 END), 0) FROM episodes`,
	).Scan(&total, &placeholders)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return total, placeholders, nil
}
