package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// SyncMetadataRepository stores scan bookkeeping such as the last run time
type SyncMetadataRepository struct {
	db Querier
}

// NewSyncMetadataRepository creates a new sync metadata repository
func NewSyncMetadataRepository(db Querier) *SyncMetadataRepository {
	return &SyncMetadataRepository{db: db}
}

// GetLastRunTime retrieves the last completion time for a given job key.
// A zero time means the job never completed.
func (r *SyncMetadataRepository) GetLastRunTime(ctx context.Context, key string) (time.Time, error) {
	value, err := r.GetValue(ctx, "last_"+key)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last run time: %w", err)
	}
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("Failed to parse run timestamp, treating as never run",
			"key", key,
			"value", value,
			"error", err,
		)
		return time.Time{}, nil
	}

	return t, nil
}

// SetLastRunTime records the completion time for a given job key
func (r *SyncMetadataRepository) SetLastRunTime(ctx context.Context, key string, t time.Time) error {
	if err := r.SetValue(ctx, "last_"+key, t.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to set last run time: %w", err)
	}
	return nil
}

// GetValue retrieves a generic value. Missing keys yield "".
func (r *SyncMetadataRepository) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM sync_metadata WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get sync metadata value: %w", err)
	}

	return value, nil
}

// SetValue upserts a generic value
func (r *SyncMetadataRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set sync metadata value: %w", err)
	}
	return nil
}
