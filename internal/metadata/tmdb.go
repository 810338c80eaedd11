package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shapedtime/cloudlib/internal/tmdb"
)

// TMDBClient defines the TMDB operations needed by the adapter.
// Defined at point of use for minimal coupling.
type TMDBClient interface {
	SearchMovies(ctx context.Context, query string) ([]tmdb.Movie, error)
	SearchShows(ctx context.Context, query string) ([]tmdb.Show, error)
	GetMovie(ctx context.Context, id int) (*tmdb.Movie, error)
	GetShowDetails(ctx context.Context, id int) (*tmdb.ShowDetails, error)
	GetSeason(ctx context.Context, showID int, seasonNumber int) (*tmdb.Season, error)
	GetCredits(ctx context.Context, kind string, id int) (*tmdb.Credits, error)
	GetImages(ctx context.Context, kind string, id int) (*tmdb.Images, error)
}

// Compile-time verification that tmdb.Client implements TMDBClient
var _ TMDBClient = (*tmdb.Client)(nil)

var _ Service = (*TMDB)(nil)

// maxCast caps the number of cast names kept per title.
const maxCast = 10

// TMDB adapts the TMDB API to Service.
type TMDB struct {
	client TMDBClient
	log    *slog.Logger
}

// NewTMDB creates a TMDB-backed metadata service.
func NewTMDB(client TMDBClient) *TMDB {
	return &TMDB{
		client: client,
		log:    slog.With("component", "metadata-tmdb"),
	}
}

// SearchTitles runs a title search, preserving TMDB's result order.
func (t *TMDB) SearchTitles(ctx context.Context, kind Kind, name string) ([]Title, error) {
	switch kind {
	case KindMovie:
		movies, err := t.client.SearchMovies(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to search movies: %w", err)
		}
		titles := make([]Title, 0, len(movies))
		for _, m := range movies {
			titles = append(titles, Title{
				ExternalID:   m.ID,
				Name:         m.Title,
				OriginalName: m.OriginalTitle,
				Year:         m.Year(),
				Popularity:   m.Popularity,
				HasBackdrop:  m.BackdropPath != "",
			})
		}
		return titles, nil

	case KindShow:
		shows, err := t.client.SearchShows(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to search shows: %w", err)
		}
		titles := make([]Title, 0, len(shows))
		for _, s := range shows {
			titles = append(titles, Title{
				ExternalID:   s.ID,
				Name:         s.Name,
				OriginalName: s.OriginalName,
				Year:         s.Year(),
				Popularity:   s.Popularity,
				HasBackdrop:  s.BackdropPath != "",
			})
		}
		return titles, nil
	}
	return nil, fmt.Errorf("unknown media kind %q", kind)
}

// GetDetails fetches a title with its cast. A failed credits lookup is
// logged and leaves Cast empty.
func (t *TMDB) GetDetails(ctx context.Context, kind Kind, externalID int) (*Details, error) {
	var details *Details

	switch kind {
	case KindMovie:
		m, err := t.client.GetMovie(ctx, externalID)
		if err != nil {
			return nil, translate(err, "failed to get movie")
		}
		details = &Details{
			ExternalID:  m.ID,
			Kind:        KindMovie,
			Name:        m.Title,
			Year:        m.Year(),
			Overview:    m.Overview,
			PosterURL:   imageURL(m.PosterPath),
			BackdropURL: imageURL(m.BackdropPath),
		}

	case KindShow:
		s, err := t.client.GetShowDetails(ctx, externalID)
		if err != nil {
			return nil, translate(err, "failed to get show")
		}
		details = &Details{
			ExternalID:  s.ID,
			Kind:        KindShow,
			Name:        s.Name,
			Year:        s.Year(),
			Overview:    s.Overview,
			PosterURL:   imageURL(s.PosterPath),
			BackdropURL: imageURL(s.BackdropPath),
		}
		for _, season := range s.Seasons {
			details.Seasons = append(details.Seasons, SeasonSummary{
				Number:       season.SeasonNumber,
				EpisodeCount: season.EpisodeCount,
			})
		}

	default:
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}

	credits, err := t.client.GetCredits(ctx, tmdbKind(kind), externalID)
	if err != nil {
		t.log.Warn("Failed to fetch credits", "kind", kind, "external_id", externalID, "error", err)
		return details, nil
	}
	cast := credits.Cast
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	for i, member := range cast {
		if i == maxCast {
			break
		}
		details.Cast = append(details.Cast, member.Name)
	}

	return details, nil
}

// GetEpisodeList fetches every regular season of a show. Any season failure
// fails the whole list so callers never reconcile against a partial view.
func (t *TMDB) GetEpisodeList(ctx context.Context, externalID int) ([]Episode, error) {
	show, err := t.client.GetShowDetails(ctx, externalID)
	if err != nil {
		return nil, translate(err, "failed to get show")
	}

	var episodes []Episode
	for _, s := range show.Seasons {
		if s.SeasonNumber == 0 {
			continue
		}
		season, err := t.client.GetSeason(ctx, externalID, s.SeasonNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to get season %d: %w", s.SeasonNumber, err)
		}
		for _, ep := range season.Episodes {
			episodes = append(episodes, Episode{
				Season:   s.SeasonNumber,
				Number:   ep.EpisodeNumber,
				Title:    ep.Name,
				Overview: ep.Overview,
				StillURL: imageURL(ep.StillPath),
			})
		}
	}
	return episodes, nil
}

// GetImages picks the best voted poster and backdrop for a title.
func (t *TMDB) GetImages(ctx context.Context, kind Kind, externalID int, name string) (*Images, error) {
	images, err := t.client.GetImages(ctx, tmdbKind(kind), externalID)
	if err != nil {
		return nil, translate(err, "failed to get images")
	}

	result := &Images{
		PosterURL:   imageURL(bestImage(images.Posters)),
		BackdropURL: imageURL(bestImage(images.Backdrops)),
	}
	if result.PosterURL == "" && result.BackdropURL == "" {
		t.log.Debug("No artwork available", "name", name, "external_id", externalID)
	}
	return result, nil
}

func bestImage(images []tmdb.Image) string {
	best := ""
	bestVote := -1.0
	for _, img := range images {
		if img.VoteAverage > bestVote {
			best = img.FilePath
			bestVote = img.VoteAverage
		}
	}
	return best
}

func tmdbKind(kind Kind) string {
	if kind == KindShow {
		return "tv"
	}
	return "movie"
}

func imageURL(p string) string {
	if p == "" {
		return ""
	}
	return tmdb.ImageBaseURL + p
}

func translate(err error, msg string) error {
	if errors.Is(err, tmdb.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
