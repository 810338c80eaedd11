package identify

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/storage"
)

// ParseEpisode reads season and episode numbers from a filename, trying
// patterns in order of confidence. folderName supplies the season when the
// filename alone does not.
func ParseEpisode(filename, folderName string) ParsedEpisode {
	p := defaultPatterns
	name := stripExtension(filename)

	if m := p.SxxExx.FindStringSubmatch(name); m != nil {
		return ParsedEpisode{
			Season: parseInt(m[1]), Episode: parseInt(m[2]),
			SeasonConfidence: ConfidenceHigh, EpisodeConfidence: ConfidenceHigh,
			Pattern: "SxxExx",
		}
	}

	if m := p.XxYY.FindStringSubmatch(name); m != nil {
		return ParsedEpisode{
			Season: parseInt(m[1]), Episode: parseInt(m[2]),
			SeasonConfidence: ConfidenceHigh, EpisodeConfidence: ConfidenceHigh,
			Pattern: "XxYY",
		}
	}

	if m := p.SeasonEpisode.FindStringSubmatch(name); m != nil {
		return ParsedEpisode{
			Season: parseInt(m[1]), Episode: parseInt(m[2]),
			SeasonConfidence: ConfidenceMedium, EpisodeConfidence: ConfidenceMedium,
			Pattern: "Season X Episode Y",
		}
	}

	folderSeason, hasFolderSeason := SeasonFromFolder(folderName)
	if !hasFolderSeason {
		return ParsedEpisode{}
	}

	if m := p.EpNumber.FindStringSubmatch(name); m != nil {
		return ParsedEpisode{
			Season: folderSeason, Episode: parseInt(m[1]),
			SeasonConfidence: ConfidenceMedium, EpisodeConfidence: ConfidenceMedium,
			Pattern: "Ep/Episode + folder",
		}
	}

	if m := p.LooseNumber.FindStringSubmatch(strings.ToLower(dropBracketGroups(name))); m != nil {
		ep := parseInt(m[1])
		conf := ConfidenceLow
		pattern := "number + folder"
		if folderSeason > 0 && ep > folderSeason*100 && ep < (folderSeason+1)*100 {
			ep -= folderSeason * 100
			conf = ConfidenceMedium
			pattern = "SEE + folder"
		}
		if ep > 0 {
			return ParsedEpisode{
				Season: folderSeason, Episode: ep,
				SeasonConfidence: ConfidenceMedium, EpisodeConfidence: conf,
				Pattern: pattern,
			}
		}
	}

	return ParsedEpisode{Season: folderSeason, SeasonConfidence: ConfidenceMedium}
}

func dropBracketGroups(name string) string {
	return strings.Join(dropBracketed(tokenize(name)), " ")
}

// ResolvedEpisode places one file at a season/episode of a show.
type ResolvedEpisode struct {
	File     storage.RemoteFile
	Season   int
	Episode  int
	Title    string
	Overview string
	StillURL string
	// Placeholder is set when the numbers were not cross-validated against
	// the canonical episode list.
	Placeholder bool
	Pattern     string
}

// SeasonMatch is the outcome of matching one season folder.
type SeasonMatch struct {
	Resolved []ResolvedEpisode
	Skipped  []storage.RemoteFile
}

// EpisodeMatcher resolves a season folder listing against canonical episodes.
type EpisodeMatcher struct {
	// AdmitPlaceholders admits out-of-bounds and unparseable files as bare
	// placeholders instead of skipping them.
	AdmitPlaceholders bool
	Workers           int
	log               *slog.Logger
}

// NewEpisodeMatcher creates a matcher that parses up to workers files at once.
func NewEpisodeMatcher(admitPlaceholders bool, workers int) *EpisodeMatcher {
	if workers < 1 {
		workers = 1
	}
	return &EpisodeMatcher{
		AdmitPlaceholders: admitPlaceholders,
		Workers:           workers,
		log:               slog.With("component", "episode-matcher"),
	}
}

type parsedFile struct {
	file     storage.RemoteFile
	parsed   ParsedEpisode
	folded   string
	resolved *ResolvedEpisode
}

// MatchSeason resolves every video in files. Duplicate placements are
// returned as-is for the caller to arbitrate.
func (m *EpisodeMatcher) MatchSeason(ctx context.Context, files []storage.RemoteFile, folderName string, canonical []metadata.Episode) (*SeasonMatch, error) {
	videos := common.Filter(files, func(f storage.RemoteFile) bool {
		return !f.IsFolder && (f.IsVideo() || IsVideoFile(f.Name)) && !ShouldSkip(f.Name)
	})
	sort.Slice(videos, func(i, j int) bool { return videos[i].Name < videos[j].Name })

	parsed := make([]parsedFile, len(videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Workers)
	for i, f := range videos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = parsedFile{
				file:   f,
				parsed: ParseEpisode(f.Name, folderName),
				folded: " " + FoldName(stripExtension(f.Name)) + " ",
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bounds := newEpisodeBounds(canonical)
	result := &SeasonMatch{}
	var unparsed []parsedFile

	for i := range parsed {
		pf := &parsed[i]

		if ep, ok := crossReference(pf, canonical); ok {
			pf.resolved = &ResolvedEpisode{
				File: pf.file, Season: ep.Season, Episode: ep.Number,
				Title: ep.Title, Overview: ep.Overview, StillURL: ep.StillURL,
				Pattern: pf.parsed.Pattern,
			}
			result.Resolved = append(result.Resolved, *pf.resolved)
			continue
		}

		if !pf.parsed.OK() {
			unparsed = append(unparsed, *pf)
			continue
		}

		if bounds.contains(pf.parsed.Season, pf.parsed.Episode) || m.AdmitPlaceholders {
			result.Resolved = append(result.Resolved, ResolvedEpisode{
				File: pf.file, Season: pf.parsed.Season, Episode: pf.parsed.Episode,
				Placeholder: true, Pattern: pf.parsed.Pattern,
			})
			continue
		}

		m.log.Debug("Episode out of bounds, skipping",
			"file", pf.file.Name,
			"episode", common.EpisodeCode(pf.parsed.Season, pf.parsed.Episode),
		)
		result.Skipped = append(result.Skipped, pf.file)
	}

	if len(unparsed) == 0 {
		return result, nil
	}
	if !m.AdmitPlaceholders {
		for _, pf := range unparsed {
			result.Skipped = append(result.Skipped, pf.file)
		}
		return result, nil
	}

	season, _ := SeasonFromFolder(folderName)
	next := bounds.maxEpisode(season)
	for _, r := range result.Resolved {
		if r.Season == season && r.Episode > next {
			next = r.Episode
		}
	}
	for _, pf := range unparsed {
		next++
		result.Resolved = append(result.Resolved, ResolvedEpisode{
			File: pf.file, Season: season, Episode: next,
			Placeholder: true, Pattern: "synthetic",
		})
	}
	return result, nil
}

// crossReference narrows the canonical episodes plausibly named by a file
// down to one: title substring, then the more confident number, then the
// exact pair.
func crossReference(pf *parsedFile, canonical []metadata.Episode) (metadata.Episode, bool) {
	p := pf.parsed
	titleMatch := func(ep metadata.Episode) bool {
		t := FoldName(ep.Title)
		return t != "" && strings.Contains(pf.folded, " "+t+" ")
	}
	numberMatch := func(ep metadata.Episode) bool {
		return p.EpisodeConfidence > ConfidenceNone && ep.Number == p.Episode
	}
	pairMatch := func(ep metadata.Episode) bool {
		return p.OK() && ep.Season == p.Season && ep.Number == p.Episode
	}

	candidates := common.Filter(canonical, func(ep metadata.Episode) bool {
		return numberMatch(ep) || pairMatch(ep) || titleMatch(ep)
	})

	narrow := func(keep func(metadata.Episode) bool) {
		if len(candidates) <= 1 {
			return
		}
		if out := common.Filter(candidates, keep); len(out) > 0 {
			candidates = out
		}
	}

	narrow(titleMatch)
	if p.SeasonConfidence > p.EpisodeConfidence {
		narrow(func(ep metadata.Episode) bool { return ep.Season == p.Season })
	} else {
		narrow(numberMatch)
	}
	narrow(pairMatch)

	if len(candidates) != 1 {
		return metadata.Episode{}, false
	}
	// A bare episode-number hit from another season does not override a
	// season read from the filename.
	ep := candidates[0]
	if p.OK() && ep.Season != p.Season && !titleMatch(ep) {
		return metadata.Episode{}, false
	}
	return ep, true
}

type episodeBounds struct {
	maxBySeason map[int]int
}

func newEpisodeBounds(canonical []metadata.Episode) episodeBounds {
	b := episodeBounds{maxBySeason: make(map[int]int)}
	for _, ep := range canonical {
		if ep.Number > b.maxBySeason[ep.Season] {
			b.maxBySeason[ep.Season] = ep.Number
		}
	}
	return b
}

func (b episodeBounds) contains(season, episode int) bool {
	last, ok := b.maxBySeason[season]
	return ok && episode >= 1 && episode <= last
}

func (b episodeBounds) maxEpisode(season int) int {
	return b.maxBySeason[season]
}
