// Package scan drives recognition of remote media files and reconciles the
// results with the catalog.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shapedtime/cloudlib/internal/identify"
	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/metrics"
	"github.com/shapedtime/cloudlib/internal/storage"
	"github.com/shapedtime/cloudlib/internal/subtitle"
)

var (
	// ErrNoRoots is returned when neither movie nor show roots are configured.
	ErrNoRoots = errors.New("no scan roots configured")
	// ErrRootNotFound is returned when a configured root does not exist.
	ErrRootNotFound = errors.New("scan root not found")
)

// Storage is the slice of the storage provider the orchestrator uses.
type Storage interface {
	ListChildren(ctx context.Context, folderID string) ([]storage.RemoteFile, error)
	ListChildrenRecursive(ctx context.Context, folderID string) ([]storage.RemoteFile, error)
	ListChildrenRecursiveSkipMissing(ctx context.Context, folderID string) ([]storage.RemoteFile, error)
	GetFile(ctx context.Context, fileID string) (*storage.RemoteFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Subtitles records sidecar subtitles and schedules acquisition.
type Subtitles interface {
	ScheduleMissing(ctx context.Context, itemType subtitle.ItemType, ids []int64) (int, error)
	RecordSidecars(ctx context.Context, itemType subtitle.ItemType, itemID int64, video storage.RemoteFile, siblings []storage.RemoteFile) (int, error)
	Purge(ctx context.Context, itemType subtitle.ItemType, ids []int64) (int, error)
}

// invalidator is implemented by metadata caches.
type invalidator interface {
	Invalidate(externalID int) error
}

// Options configures an Orchestrator.
type Options struct {
	MovieRoots []string
	ShowRoots  []string
	// Workers bounds concurrent recognition and parsing.
	Workers int
	// Thorough disables the fast-mode skip of shows whose episode count
	// already matches the canonical total.
	Thorough                bool
	AdmitPlaceholders       bool
	AllowDestructiveCleanup bool
	// PreferredTags ranks release tags for duplicate arbitration, best first.
	PreferredTags []string
	// LockPath, when set, guards runs across processes.
	LockPath string
	// Now overrides the wall clock for year plausibility checks.
	Now func() time.Time
}

// Orchestrator runs scans. It is safe for concurrent use; overlapping runs
// are rejected with ErrScanInProgress.
type Orchestrator struct {
	storage   Storage
	meta      metadata.Service
	store     *library.Store
	subtitles Subtitles
	metrics   *metrics.Metrics
	opts      Options

	normalizer    identify.Normalizer
	finder        *identify.Finder
	disambiguator identify.Disambiguator
	matcher       *identify.EpisodeMatcher
	resolver      *ConflictResolver
	lock          *runLock
	log           *slog.Logger
}

// New creates an orchestrator. subs and m may be nil.
func New(st Storage, meta metadata.Service, store *library.Store, subs Subtitles, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Orchestrator{
		storage:       st,
		meta:          meta,
		store:         store,
		subtitles:     subs,
		metrics:       m,
		opts:          opts,
		normalizer:    identify.Normalizer{Now: opts.Now},
		finder:        identify.NewFinder(meta),
		disambiguator: identify.Disambiguator{Now: opts.Now},
		matcher:       identify.NewEpisodeMatcher(opts.AdmitPlaceholders, opts.Workers),
		resolver:      NewConflictResolver(st, opts.PreferredTags, opts.AllowDestructiveCleanup),
		lock:          newRunLock(opts.LockPath),
		log:           slog.With("component", "scan"),
	}
}

// Run performs a full scan: ingest new movie files and show folders, then
// reconcile the episodes of every catalogued show and schedule subtitles.
// Only configuration problems and the run lock surface as errors; every
// per-item failure is logged and skipped.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.validateRoots(ctx); err != nil {
		return nil, err
	}

	release, err := o.lock.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rep := &Report{RunID: uuid.NewString(), Mode: "full", StartedAt: time.Now()}
	log := o.log.With("run_id", rep.RunID)
	log.Info("Scan started",
		"movie_roots", len(o.opts.MovieRoots),
		"show_roots", len(o.opts.ShowRoots),
		"thorough", o.opts.Thorough,
	)
	o.metrics.RunStarted()

	err = o.run(ctx, log, rep)

	rep.Duration = time.Since(rep.StartedAt)
	o.metrics.RunFinished(rep.Mode, rep.Duration, err)
	if err != nil {
		log.Warn("Scan interrupted", "error", err, "writes", rep.Writes())
		return rep, err
	}

	log.Info("Scan completed",
		"duration", rep.Duration.Round(time.Millisecond),
		"new_files", rep.NewFiles,
		"movies_matched", rep.MoviesMatched,
		"shows_matched", rep.ShowsMatched,
		"unresolved", rep.MoviesUnresolved+rep.ShowsUnresolved,
		"shows_reconciled", rep.ShowsReconciled,
		"created", rep.Created,
		"updated", rep.Updated,
		"deleted", rep.Deleted,
		"conflicts", rep.Conflicts,
		"subtitles_scheduled", rep.SubtitlesScheduled,
	)
	return rep, nil
}

// run returns only on cancellation.
func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, rep *Report) error {
	for _, root := range o.opts.MovieRoots {
		if err := o.ingestMovies(ctx, log, rep, root); err != nil {
			return err
		}
	}
	for _, root := range o.opts.ShowRoots {
		if err := o.ingestShows(ctx, log, rep, root); err != nil {
			return err
		}
	}

	shows, err := o.store.Media.ListByKind(ctx, library.MediaKindShow)
	if err != nil {
		log.Error("Failed to list catalogued shows", "error", err)
	}
	for _, show := range shows {
		if err := ctx.Err(); err != nil {
			return err
		}
		sr, err := o.reconcileShow(ctx, log, show, o.opts.Thorough)
		if err != nil {
			return err
		}
		rep.addShow(sr)
	}

	return o.scheduleSubtitles(ctx, log, rep)
}

// RescanShow reconciles a single catalogued show. Cached episode lists are
// dropped first so the canonical data is current.
func (o *Orchestrator) RescanShow(ctx context.Context, showID int64, thorough bool) (*ShowReport, error) {
	show, err := o.store.Media.GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}
	if show == nil || show.Kind != library.MediaKindShow {
		return nil, fmt.Errorf("show %d: %w", showID, library.ErrMediaNotFound)
	}

	release, err := o.lock.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	log := o.log.With("run_id", uuid.NewString(), "show_id", showID)
	o.metrics.RunStarted()

	if inv, ok := o.meta.(invalidator); ok {
		if err := inv.Invalidate(show.ExternalID); err != nil {
			log.Warn("Failed to invalidate cached episodes", "error", err)
		}
	}

	sr, err := o.reconcileShow(ctx, log, show, thorough)
	o.metrics.RunFinished("show", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	log.Info("Show rescan completed",
		"name", show.Name,
		"skipped", sr.Skipped,
		"created", sr.Created,
		"updated", sr.Updated,
		"deleted", sr.Deleted,
		"placeholders", sr.Placeholders,
	)
	return sr, nil
}

// validateRoots checks every configured root before any item is processed.
func (o *Orchestrator) validateRoots(ctx context.Context) error {
	if len(o.opts.MovieRoots) == 0 && len(o.opts.ShowRoots) == 0 {
		return ErrNoRoots
	}
	roots := append(append([]string{}, o.opts.MovieRoots...), o.opts.ShowRoots...)
	for _, root := range roots {
		f, err := o.storage.GetFile(ctx, root)
		if err != nil {
			return fmt.Errorf("failed to stat root %s: %w", root, err)
		}
		if f == nil {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		if !f.IsFolder {
			return fmt.Errorf("scan root %s is not a folder", root)
		}
	}
	return nil
}

func (o *Orchestrator) scheduleSubtitles(ctx context.Context, log *slog.Logger, rep *Report) error {
	if o.subtitles == nil {
		return nil
	}

	videoIDs, err := o.store.Videos.ListIDs(ctx)
	if err != nil {
		log.Error("Failed to list videos for subtitles", "error", err)
		return nil
	}
	episodeIDs, err := o.store.Episodes.ListIDs(ctx)
	if err != nil {
		log.Error("Failed to list episodes for subtitles", "error", err)
		return nil
	}

	for _, batch := range []struct {
		itemType subtitle.ItemType
		ids      []int64
	}{
		{subtitle.ItemTypeMovie, videoIDs},
		{subtitle.ItemTypeEpisode, episodeIDs},
	} {
		n, err := o.subtitles.ScheduleMissing(ctx, batch.itemType, batch.ids)
		rep.SubtitlesScheduled += n
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Failed to schedule subtitles", "item_type", batch.itemType, "error", err)
		}
	}
	return nil
}

// recordSidecars is best effort.
func (o *Orchestrator) recordSidecars(ctx context.Context, log *slog.Logger, itemType subtitle.ItemType, itemID int64, video storage.RemoteFile, siblings []storage.RemoteFile) {
	if o.subtitles == nil {
		return
	}
	if _, err := o.subtitles.RecordSidecars(ctx, itemType, itemID, video, siblings); err != nil {
		log.Warn("Failed to record sidecar subtitles", "file", video.ID, "error", err)
	}
}

func (o *Orchestrator) purgeSubtitles(ctx context.Context, log *slog.Logger, itemType subtitle.ItemType, ids []int64) {
	if o.subtitles == nil || len(ids) == 0 {
		return
	}
	if _, err := o.subtitles.Purge(ctx, itemType, ids); err != nil {
		log.Warn("Failed to purge subtitles of deleted items", "item_type", itemType, "error", err)
	}
}
