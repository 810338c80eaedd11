package library

import "time"

// MediaKind distinguishes movies from shows in the catalog
type MediaKind string

const (
	MediaKindMovie MediaKind = "movie"
	MediaKindShow  MediaKind = "show"
)

// Media is a recognized canonical title
type Media struct {
	ID          int64
	ExternalID  int
	Kind        MediaKind
	Name        string
	Year        int
	Overview    string
	PosterURL   string
	BackdropURL string
	Cast        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Video is a movie file owned by a Media row
type Video struct {
	ID               int64
	MediaID          int64
	RemoteLocationID string
	FileName         string
	SizeBytes        int64
	CreatedAt        time.Time
}

// Folder is a show folder owned by a Media row
type Folder struct {
	ID               int64
	MediaID          int64
	RemoteLocationID string
	Name             string
	CreatedAt        time.Time
}

// Episode is an episode file of a show. Title and Overview are empty for
// placeholders.
type Episode struct {
	ID            int64
	ShowID        int64
	SeasonNumber  int
	EpisodeNumber int
	RemoteVideoID string
	FileName      string
	SizeBytes     int64
	Title         string
	Overview      string
	StillURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPlaceholder reports whether the episode was not matched to a canonical title
func (e *Episode) IsPlaceholder() bool {
	return e.Title == ""
}

// EpisodeKey identifies an episode within a show
type EpisodeKey struct {
	Season  int
	Episode int
}

// Key returns the season/episode identity of e
func (e *Episode) Key() EpisodeKey {
	return EpisodeKey{Season: e.SeasonNumber, Episode: e.EpisodeNumber}
}

// EpisodeChanges is a reconciliation batch for one show
type EpisodeChanges struct {
	Creates []*Episode
	Updates []*Episode
	Deletes []int64
}

// Empty reports whether the batch has nothing to apply
func (c *EpisodeChanges) Empty() bool {
	return len(c.Creates) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}

// Counts summarizes catalog size
type Counts struct {
	Movies              int
	Shows               int
	Videos              int
	Folders             int
	Episodes            int
	PlaceholderEpisodes int
}
