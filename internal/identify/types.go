package identify

// Confidence represents how reliably a number was read from a filename
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// QualityInfo contains quality metadata extracted from filenames
type QualityInfo struct {
	Resolution string `json:"resolution"` // 2160p, 1080p, 720p, 480p
	Source     string `json:"source"`     // REMUX, BluRay, WEB-DL, HDTV
	Codec      string `json:"codec"`      // x264, x265, HEVC
	HDR        bool   `json:"hdr"`
}

// ParsedEpisode is the season/episode numbering read from one filename.
type ParsedEpisode struct {
	Season            int
	Episode           int
	SeasonConfidence  Confidence
	EpisodeConfidence Confidence
	Pattern           string
}

// OK reports whether both numbers were found.
func (p ParsedEpisode) OK() bool {
	return p.SeasonConfidence > ConfidenceNone && p.EpisodeConfidence > ConfidenceNone
}
