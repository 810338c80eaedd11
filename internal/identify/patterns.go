package identify

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CompiledPatterns holds the filename regexes shared by episode parsing and
// quality extraction.
type CompiledPatterns struct {
	SxxExx        *regexp.Regexp
	XxYY          *regexp.Regexp
	SeasonEpisode *regexp.Regexp
	EpNumber      *regexp.Regexp
	SeasonFolder  *regexp.Regexp
	LooseNumber   *regexp.Regexp

	Resolution *regexp.Regexp
	Source     *regexp.Regexp
	Codec      *regexp.Regexp
	HDR        *regexp.Regexp
}

// NewCompiledPatterns compiles the pattern set.
func NewCompiledPatterns() *CompiledPatterns {
	return &CompiledPatterns{
		SxxExx:        regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,2})[ ._-]?e(\d{1,3})(?:[^0-9]|$)`),
		XxYY:          regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(\d{1,2})x(\d{2,3})(?:[^0-9]|$)`),
		SeasonEpisode: regexp.MustCompile(`(?i)season[ ._-]*(\d{1,2}).*?episode[ ._-]*(\d{1,3})`),
		EpNumber:      regexp.MustCompile(`(?i)(?:^|[^a-z])(?:ep|episode)[ ._-]*(\d{1,3})(?:[^0-9]|$)`),
		SeasonFolder:  regexp.MustCompile(`(?i)^(?:.*[^a-z])?(?:season|series|staffel|saison)[ ._-]*(\d{1,2})(?:[^0-9]|$)|^s(\d{1,2})$`),
		LooseNumber:   regexp.MustCompile(`(?:^|[^0-9a-z])(\d{2,3})(?:[^0-9a-z]|$)`),

		Resolution: regexp.MustCompile(`(?i)\b(2160p|1080p|1080i|720p|576p|480p|4k|uhd)\b`),
		Source:     regexp.MustCompile(`(?i)\b(remux|blu-?ray|bdrip|brrip|web[ ._-]?dl|webrip|hdtv|dvdrip)\b`),
		Codec:      regexp.MustCompile(`(?i)\b([xh][ .]?26[45]|hevc|avc|av1)\b`),
		HDR:        regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|dolby[ ._-]?vision|dovi|dv)\b`),
	}
}

var defaultPatterns = NewCompiledPatterns()

// Video file extensions
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".wmv": true,
	".mov": true, ".m4v": true, ".webm": true, ".ts": true,
	".m2ts": true, ".vob": true, ".flv": true, ".divx": true,
}

// Subtitle file extensions
var subtitleExtensions = map[string]bool{
	".srt": true, ".sub": true, ".ass": true, ".ssa": true,
	".vtt": true, ".idx": true, ".smi": true,
}

// IsVideoFile checks if the file is a video file based on extension
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

var skipPatterns = []string{
	"sample",
	"trailer",
	"preview",
	"featurette",
	"deleted.scene",
	"deleted_scene",
	"deleted-scene",
	"deleted scene",
	"behind.the.scene",
	"behind_the_scene",
	"behind-the-scene",
	"behind the scene",
}

// ShouldSkip returns true for samples, trailers and extras.
func ShouldSkip(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// ExtrasFolder reports whether a folder holds bonus material.
func ExtrasFolder(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "extras", "extra", "bonus", "featurettes", "specials", "samples", "sample", "trailers":
		return true
	}
	return false
}

// SeasonFromFolder reads the season number from a folder name such as
// "Season 2", "Series 02" or "S2".
func SeasonFromFolder(name string) (int, bool) {
	m := defaultPatterns.SeasonFolder.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
