package identify

import (
	"context"
	"log/slog"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/metadata"
)

// Candidate is a search result scored against the normalized source name.
type Candidate struct {
	ExternalID  int
	Name        string
	Popularity  float64
	Year        int
	HasBackdrop bool
	// Similarity is an edit distance: 0 is an exact match.
	Similarity int
}

// Searcher is the slice of metadata.Service the finder needs.
type Searcher interface {
	SearchTitles(ctx context.Context, kind metadata.Kind, name string) ([]metadata.Title, error)
}

// Finder turns a normalized name into scored candidates.
type Finder struct {
	search Searcher
	log    *slog.Logger
}

// NewFinder creates a candidate finder over a metadata searcher.
func NewFinder(search Searcher) *Finder {
	return &Finder{
		search: search,
		log:    slog.With("component", "candidate-finder"),
	}
}

// Find issues a single search and scores every result. An unreachable
// service yields an empty list, never an error.
func (f *Finder) Find(ctx context.Context, name string, kind metadata.Kind) []Candidate {
	if name == "" {
		return nil
	}

	titles, err := f.search.SearchTitles(ctx, kind, name)
	if err != nil {
		f.log.Warn("Title search failed", "name", name, "kind", kind, "error", err)
		return nil
	}

	// Paged searches can repeat a title.
	titles = common.DedupeBy(titles, func(t metadata.Title) int { return t.ExternalID })

	candidates := make([]Candidate, 0, len(titles))
	for _, t := range titles {
		candidates = append(candidates, Candidate{
			ExternalID:  t.ExternalID,
			Name:        t.Name,
			Popularity:  t.Popularity,
			Year:        t.Year,
			HasBackdrop: t.HasBackdrop,
			Similarity:  Similarity(name, t),
		})
	}
	return candidates
}

// Similarity scores a title against an already normalized name, taking the
// closer of its display and original names.
func Similarity(normalized string, t metadata.Title) int {
	best := common.EditDistance(normalized, FoldName(t.Name))
	if t.OriginalName != "" && t.OriginalName != t.Name {
		if d := common.EditDistance(normalized, FoldName(t.OriginalName)); d < best {
			best = d
		}
	}
	return best
}
