package subtitle

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/shapedtime/cloudlib/internal/storage"
)

// Service decides which catalog videos still need subtitles and records
// subtitle files already sitting next to them in storage.
type Service struct {
	repo      SubtitleRepository
	scheduler Scheduler
	required  []string
	log       *slog.Logger
}

// NewService creates a subtitle service. required lists ISO 639-1 codes every
// video should carry.
func NewService(repo SubtitleRepository, scheduler Scheduler, required []string) *Service {
	langs := make([]string, 0, len(required))
	for _, l := range required {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			langs = append(langs, l)
		}
	}
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		required:  langs,
		log:       slog.With("component", "subtitles"),
	}
}

// ScheduleMissing requests a fetch for every item in ids lacking at least one
// required language and returns how many were scheduled. A failed request
// is logged and skipped.
func (s *Service) ScheduleMissing(ctx context.Context, itemType ItemType, ids []int64) (int, error) {
	if len(s.required) == 0 || len(ids) == 0 {
		return 0, nil
	}

	have, err := s.repo.LanguagesByItem(ctx, itemType)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return scheduled, err
		}
		missing := MissingLanguages(s.required, have[id])
		if len(missing) == 0 {
			continue
		}
		item := Item{Type: itemType, ID: id, Languages: missing}
		if err := s.scheduler.ScheduleFetch(ctx, item); err != nil {
			s.log.Warn("Failed to schedule subtitle fetch",
				"item_type", itemType,
				"item_id", id,
				"error", err,
			)
			continue
		}
		scheduled++
	}
	return scheduled, nil
}

// RecordSidecars stores subtitle files from siblings that belong to video,
// i.e. share its base name, such as "Movie.2010.en.srt" next to
// "Movie.2010.mkv". Files whose language cannot be detected are ignored.
func (s *Service) RecordSidecars(ctx context.Context, itemType ItemType, itemID int64, video storage.RemoteFile, siblings []storage.RemoteFile) (int, error) {
	base := strings.ToLower(strings.TrimSuffix(video.Name, path.Ext(video.Name)))
	recorded := 0
	for _, f := range siblings {
		if f.IsFolder || f.ParentID != video.ParentID || !IsSubtitleFile(f.Name) {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(f.Name), base) {
			continue
		}
		code, name, ok := DetectLanguage(f.Name)
		if !ok {
			continue
		}
		sub := &Subtitle{
			ItemType:     itemType,
			ItemID:       itemID,
			LanguageCode: code,
			LanguageName: name,
			Format:       ParseFormat(f.Name),
			FilePath:     f.ID,
			FileSize:     f.Size,
		}
		if err := s.repo.Create(ctx, sub); err != nil {
			return recorded, fmt.Errorf("failed to record sidecar %s: %w", f.Name, err)
		}
		recorded++
	}
	if recorded > 0 {
		s.log.Debug("Recorded sidecar subtitles", "item_type", itemType, "item_id", itemID, "count", recorded)
	}
	return recorded, nil
}

// Purge removes the subtitle records of catalog items that no longer exist.
// It returns how many items were purged before the first failure.
func (s *Service) Purge(ctx context.Context, itemType ItemType, ids []int64) (int, error) {
	for i, id := range ids {
		if err := s.repo.DeleteByItem(ctx, itemType, id); err != nil {
			return i, fmt.Errorf("failed to purge subtitles for %s %d: %w", itemType, id, err)
		}
	}
	return len(ids), nil
}
