package scan

import "time"

// Report summarizes one run. Created, Updated and Deleted count catalog row
// writes, so a run with nothing new reports zero for all three.
type Report struct {
	RunID     string
	Mode      string
	StartedAt time.Time
	Duration  time.Duration

	FilesListed int
	NewFiles    int

	MoviesMatched    int
	MoviesUnresolved int
	ShowsMatched     int
	ShowsUnresolved  int

	ShowsReconciled int
	ShowsSkipped    int

	Created int
	Updated int
	Deleted int

	Conflicts          int
	FilesDeleted       int
	SubtitlesScheduled int
}

// Writes is the total number of catalog rows touched.
func (r *Report) Writes() int {
	return r.Created + r.Updated + r.Deleted
}

func (r *Report) addShow(s *ShowReport) {
	if s.Skipped != "" {
		r.ShowsSkipped++
	} else {
		r.ShowsReconciled++
	}
	r.Created += s.Created
	r.Updated += s.Updated
	r.Deleted += s.Deleted
	r.Conflicts += s.Conflicts
	r.FilesDeleted += s.FilesDeleted
}

// ShowReport summarizes the episode reconciliation of one show.
type ShowReport struct {
	ShowID int64
	Name   string
	// Skipped names the reason reconciliation did not run, empty otherwise.
	Skipped string

	Matched      int
	Placeholders int
	Unmatched    int

	Created int
	Updated int
	Deleted int

	Conflicts    int
	FilesDeleted int
}

// Writes is the total number of episode rows touched.
func (s *ShowReport) Writes() int {
	return s.Created + s.Updated + s.Deleted
}
