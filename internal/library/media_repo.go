package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MediaRepository handles media database operations
type MediaRepository struct {
	db Querier
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db Querier) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `id, external_id, kind, name, year, overview, poster_url, backdrop_url, cast_members, created_at, updated_at`

func scanMedia(s interface{ Scan(...any) error }) (*Media, error) {
	m := &Media{}
	var cast string
	err := s.Scan(&m.ID, &m.ExternalID, &m.Kind, &m.Name, &m.Year, &m.Overview,
		&m.PosterURL, &m.BackdropURL, &cast, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Cast = splitCast(cast)
	return m, nil
}

// Create adds a new media entry to the catalog
func (r *MediaRepository) Create(ctx context.Context, m *Media) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO media (external_id, kind, name, year, overview, poster_url, backdrop_url, cast_members)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		m.ExternalID, m.Kind, m.Name, m.Year, m.Overview, m.PosterURL, m.BackdropURL, joinCast(m.Cast),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

// GetByID retrieves a media entry by its ID
func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*Media, error) {
	m, err := scanMedia(r.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// GetByExternalID retrieves the media entry for a canonical title
func (r *MediaRepository) GetByExternalID(ctx context.Context, externalID int, kind MediaKind) (*Media, error) {
	m, err := scanMedia(r.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE external_id = $1 AND kind = $2`, externalID, kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// ListByKind returns all media of a kind ordered by name
func (r *MediaRepository) ListByKind(ctx context.Context, kind MediaKind) ([]*Media, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE kind = $1 ORDER BY name, id`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var media []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// UpdateDetails refreshes the descriptive fields of a media entry
func (r *MediaRepository) UpdateDetails(ctx context.Context, m *Media) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE media SET name = $1, year = $2, overview = $3, poster_url = $4, backdrop_url = $5,
		 cast_members = $6, updated_at = CURRENT_TIMESTAMP WHERE id = $7`,
		m.Name, m.Year, m.Overview, m.PosterURL, m.BackdropURL, joinCast(m.Cast), m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

// Count returns the number of media entries of a kind
func (r *MediaRepository) Count(ctx context.Context, kind MediaKind) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE kind = $1`, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return n, nil
}

func joinCast(cast []string) string {
	return strings.Join(cast, "\n")
}

func splitCast(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
