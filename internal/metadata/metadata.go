// Package metadata is the contract between the scanner and the external
// catalog of canonical titles, episodes and artwork.
package metadata

import (
	"context"
	"errors"
)

// Kind distinguishes movies from shows.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// ErrNotFound is returned when an external identifier is unknown.
var ErrNotFound = errors.New("metadata: not found")

// Title is one raw search result.
type Title struct {
	ExternalID   int     `json:"external_id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name,omitempty"`
	Year         int     `json:"year"`
	Popularity   float64 `json:"popularity"`
	HasBackdrop  bool    `json:"has_backdrop"`
}

// SeasonSummary is the episode count of one season.
type SeasonSummary struct {
	Number       int `json:"number"`
	EpisodeCount int `json:"episode_count"`
}

// Details describes a single title.
type Details struct {
	ExternalID  int             `json:"external_id"`
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Year        int             `json:"year"`
	Overview    string          `json:"overview"`
	PosterURL   string          `json:"poster_url,omitempty"`
	BackdropURL string          `json:"backdrop_url,omitempty"`
	Cast        []string        `json:"cast,omitempty"`
	Seasons     []SeasonSummary `json:"seasons,omitempty"`
}

// EpisodeTotal counts the regular (non-special) episodes of a show.
func (d *Details) EpisodeTotal() int {
	total := 0
	for _, s := range d.Seasons {
		if s.Number > 0 {
			total += s.EpisodeCount
		}
	}
	return total
}

// Episode is a canonical episode of a show.
type Episode struct {
	Season   int    `json:"season"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Overview string `json:"overview"`
	StillURL string `json:"still_url,omitempty"`
}

// Images is the artwork chosen for a title.
type Images struct {
	PosterURL   string `json:"poster_url,omitempty"`
	BackdropURL string `json:"backdrop_url,omitempty"`
}

// Service is implemented by TMDB and by the caching decorator.
type Service interface {
	SearchTitles(ctx context.Context, kind Kind, name string) ([]Title, error)
	// GetDetails returns ErrNotFound for unknown identifiers.
	GetDetails(ctx context.Context, kind Kind, externalID int) (*Details, error)
	// GetEpisodeList returns every regular episode of a show, season 0 excluded.
	GetEpisodeList(ctx context.Context, externalID int) ([]Episode, error)
	GetImages(ctx context.Context, kind Kind, externalID int, name string) (*Images, error)
}
