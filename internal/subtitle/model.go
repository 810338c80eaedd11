package subtitle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ItemType represents the type of catalog item a subtitle belongs to
type ItemType string

const (
	ItemTypeMovie   ItemType = "movie"
	ItemTypeEpisode ItemType = "episode"
)

// ParseItemType converts a string to ItemType with validation.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(s) {
	case "movie":
		return ItemTypeMovie, nil
	case "episode":
		return ItemTypeEpisode, nil
	default:
		return "", fmt.Errorf("invalid item type: %q (must be 'movie' or 'episode')", s)
	}
}

// Subtitle is an acquired subtitle for a catalog video. Movie items are keyed
// by video id, episode items by episode id.
type Subtitle struct {
	ID           int64
	ItemType     ItemType
	ItemID       int64
	LanguageCode string // ISO 639-1 (en, ru, tr, az)
	LanguageName string
	Format       string // srt, vtt, ass, ssa, sub
	FilePath     string // remote location or local path
	FileSize     int64
	CreatedAt    time.Time
}

// Supported subtitle formats
var SupportedFormats = map[string]bool{
	"srt": true,
	"vtt": true,
	"ass": true,
	"ssa": true,
	"sub": true,
}

// ParseFormat extracts subtitle format from filename extension.
// Returns "srt" as default if format is not recognized.
func ParseFormat(filename string) string {
	lower := strings.ToLower(filename)
	for ext := range SupportedFormats {
		if strings.HasSuffix(lower, "."+ext) {
			return ext
		}
	}
	return "srt"
}

// IsSubtitleFile reports whether filename has a subtitle extension.
func IsSubtitleFile(filename string) bool {
	lower := strings.ToLower(filename)
	for ext := range SupportedFormats {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return strings.HasSuffix(lower, ".idx") || strings.HasSuffix(lower, ".smi")
}

// Item is one catalog video that needs subtitles in Languages.
type Item struct {
	Type      ItemType `json:"item_type"`
	ID        int64    `json:"item_id"`
	Languages []string `json:"languages"`
}

// SubtitleRepository defines the storage operations the package needs.
type SubtitleRepository interface {
	Create(ctx context.Context, sub *Subtitle) error
	GetByItem(ctx context.Context, itemType ItemType, itemID int64) ([]*Subtitle, error)
	LanguagesByItem(ctx context.Context, itemType ItemType) (map[int64]map[string]bool, error)
	DeleteByItem(ctx context.Context, itemType ItemType, itemID int64) error
}

// MissingLanguages returns the entries of required not present in have,
// preserving the order of required.
func MissingLanguages(required []string, have map[string]bool) []string {
	var missing []string
	for _, lang := range required {
		if !have[strings.ToLower(lang)] {
			missing = append(missing, strings.ToLower(lang))
		}
	}
	return missing
}
