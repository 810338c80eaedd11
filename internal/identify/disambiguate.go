package identify

import (
	"time"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/metadata"
)

// Filter is one named narrowing step of the disambiguation cascade.
type Filter struct {
	Name  string
	Apply func([]Candidate) []Candidate
}

// StepTrace records what a filter did to the candidate set.
type StepTrace struct {
	Name    string
	In      int
	Out     int
	Skipped bool
}

// Decision is the outcome of disambiguation. Accepted is nil when the
// candidates could not be narrowed to a single match.
type Decision struct {
	Accepted *Candidate
	Trace    []StepTrace
	Reason   string
}

// Disambiguator picks at most one candidate for a file.
type Disambiguator struct {
	Now func() time.Time
}

// YearWindow keeps candidates released within one year of year.
func YearWindow(year int) Filter {
	return Filter{
		Name: "year-window",
		Apply: func(in []Candidate) []Candidate {
			return common.Filter(in, func(c Candidate) bool {
				return c.Year >= year-1 && c.Year <= year+1
			})
		},
	}
}

// ScoreBelow keeps candidates whose similarity is under limit.
func ScoreBelow(limit int) Filter {
	return Filter{
		Name: "score<" + common.Itoa(limit),
		Apply: func(in []Candidate) []Candidate {
			return common.Filter(in, func(c Candidate) bool {
				return c.Similarity < limit
			})
		},
	}
}

// WithBackdrop keeps candidates that have backdrop artwork.
var WithBackdrop = Filter{
	Name: "backdrop",
	Apply: func(in []Candidate) []Candidate {
		return common.Filter(in, func(c Candidate) bool { return c.HasBackdrop })
	},
}

// Narrow applies filters in order while more than one candidate remains.
// A filter that would remove every candidate is skipped.
func Narrow(candidates []Candidate, filters []Filter) ([]Candidate, []StepTrace) {
	remaining := candidates
	var trace []StepTrace
	for _, f := range filters {
		if len(remaining) <= 1 {
			break
		}
		out := f.Apply(remaining)
		step := StepTrace{Name: f.Name, In: len(remaining), Out: len(out)}
		if len(out) == 0 {
			step.Skipped = true
			step.Out = len(remaining)
		} else {
			remaining = out
		}
		trace = append(trace, step)
	}
	return remaining, trace
}

// RankBySimilarity orders by similarity ascending then popularity descending.
func RankBySimilarity(in []Candidate) []Candidate {
	return common.SortBy(in, func(a, b Candidate) int {
		if c := common.Ascending(a.Similarity, b.Similarity); c != 0 {
			return c
		}
		return common.Descending(a.Popularity, b.Popularity)
	})
}

// Resolve runs the cascade. year is 0 when none was extracted.
func (d Disambiguator) Resolve(candidates []Candidate, year int, kind metadata.Kind) Decision {
	switch len(candidates) {
	case 0:
		return Decision{Reason: "no candidates"}
	case 1:
		c := candidates[0]
		return Decision{Accepted: &c, Reason: "single candidate"}
	}

	reliableYear := year > 0 && year != d.now().Year()

	var filters []Filter
	if kind == metadata.KindMovie && reliableYear {
		filters = append(filters, YearWindow(year))
	}
	filters = append(filters, ScoreBelow(3), ScoreBelow(2), ScoreBelow(1))

	remaining, trace := Narrow(candidates, filters)
	decision := Decision{Trace: trace}

	if kind == metadata.KindShow {
		best := RankBySimilarity(remaining)[0]
		decision.Accepted = &best
		decision.Reason = "best ranked show"
		if len(remaining) == 1 {
			decision.Reason = "narrowed"
		}
		return decision
	}

	if len(remaining) == 1 && reliableYear {
		best := remaining[0]
		decision.Accepted = &best
		decision.Reason = "narrowed"
		return decision
	}

	withBackdrop := WithBackdrop.Apply(remaining)
	decision.Trace = append(decision.Trace, StepTrace{Name: WithBackdrop.Name, In: len(remaining), Out: len(withBackdrop)})
	if len(withBackdrop) == 0 {
		decision.Reason = "no candidate with backdrop"
		return decision
	}
	best := RankBySimilarity(withBackdrop)[0]
	decision.Accepted = &best
	decision.Reason = "backdrop fallback"
	return decision
}

func (d Disambiguator) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
