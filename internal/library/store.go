package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// locationChunk bounds the number of bind parameters per IN query.
const locationChunk = 500

// Store groups the catalog repositories over one connection or transaction.
type Store struct {
	db *DB
	tx *sql.Tx

	Media    *MediaRepository
	Videos   *VideoRepository
	Folders  *FolderRepository
	Episodes *EpisodeRepository
	Sync     *SyncMetadataRepository
}

// NewStore creates a store backed by db
func NewStore(db *DB) *Store {
	return newStore(db, nil, db)
}

func newStore(db *DB, tx *sql.Tx, q Querier) *Store {
	return &Store{
		db:       db,
		tx:       tx,
		Media:    NewMediaRepository(q),
		Videos:   NewVideoRepository(q),
		Folders:  NewFolderRepository(q),
		Episodes: NewEpisodeRepository(q),
		Sync:     NewSyncMetadataRepository(q),
	}
}

func (s *Store) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// DB returns the underlying database handle
func (s *Store) DB() *DB {
	return s.db
}

// WithTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calls
// on a store that is already transactional reuse the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newStore(s.db, tx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExistingLocations reports which of ids are already referenced by any
// video, folder or episode row.
func (s *Store) ExistingLocations(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	queries := []string{
		`SELECT remote_location_id FROM videos WHERE remote_location_id IN (%s)`,
		`SELECT remote_location_id FROM folders WHERE remote_location_id IN (%s)`,
		`SELECT remote_video_id FROM episodes WHERE remote_video_id IN (%s)`,
	}

	for start := 0; start < len(ids); start += locationChunk {
		end := min(start+locationChunk, len(ids))
		chunk := ids[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		in := strings.Join(placeholders, ", ")

		for _, q := range queries {
			if err := s.collectLocations(ctx, fmt.Sprintf(q, in), args, known); err != nil {
				return nil, err
			}
		}
	}
	return known, nil
}

func (s *Store) collectLocations(ctx context.Context, query string, args []any, into map[string]bool) error {
	rows, err := s.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan location: %w", err)
		}
		into[id] = true
	}
	return rows.Err()
}

// ApplyEpisodeChanges writes a show's reconciliation batch atomically.
// Deletes run first so a relocated episode can be recreated under the same
// season and number.
func (s *Store) ApplyEpisodeChanges(ctx context.Context, changes *EpisodeChanges) error {
	if changes == nil || changes.Empty() {
		return nil
	}
	return s.WithTx(ctx, func(tx *Store) error {
		for _, id := range changes.Deletes {
			if err := tx.Episodes.Delete(ctx, id); err != nil {
				return err
			}
		}
		for _, e := range changes.Updates {
			if err := tx.Episodes.UpdateMetadata(ctx, e); err != nil {
				return err
			}
		}
		for _, e := range changes.Creates {
			if err := tx.Episodes.Create(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Counts summarizes the catalog
func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Movies, err = s.Media.Count(ctx, MediaKindMovie); err != nil {
		return nil, err
	}
	if c.Shows, err = s.Media.Count(ctx, MediaKindShow); err != nil {
		return nil, err
	}
	if c.Videos, err = s.Videos.Count(ctx); err != nil {
		return nil, err
	}
	if c.Folders, err = s.Folders.Count(ctx); err != nil {
		return nil, err
	}
	if c.Episodes, c.PlaceholderEpisodes, err = s.Episodes.Count(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}
