package scan

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/identify"
	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/storage"
	"github.com/shapedtime/cloudlib/internal/subtitle"
)

type recognition struct {
	file       storage.RemoteFile
	normalized identify.Normalized
	decision   identify.Decision
}

// recognize runs normalize, find and disambiguate over items concurrently.
// Results keep the order of items.
func (o *Orchestrator) recognize(ctx context.Context, items []storage.RemoteFile, kind metadata.Kind) ([]recognition, error) {
	out := make([]recognition, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, f := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := o.normalizer.Normalize(f.Name, kind)
			candidates := o.finder.Find(gctx, n.Name, kind)
			out[i] = recognition{
				file:       f,
				normalized: n,
				decision:   o.disambiguator.Resolve(candidates, n.Year, kind),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// subtractKnown drops files whose location is already catalogued.
func (o *Orchestrator) subtractKnown(ctx context.Context, files []storage.RemoteFile) ([]storage.RemoteFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	known, err := o.store.ExistingLocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	return common.Filter(files, func(f storage.RemoteFile) bool { return !known[f.ID] }), nil
}

func (o *Orchestrator) ingestMovies(ctx context.Context, log *slog.Logger, rep *Report, root string) error {
	log = log.With("root", root)

	// Movies are independent, so a vanished subfolder only loses its own files.
	files, err := o.storage.ListChildrenRecursiveSkipMissing(ctx, root)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Failed to list movie root", "error", err)
		return nil
	}
	rep.FilesListed += len(files)

	folderNames := make(map[string]string)
	siblings := make(map[string][]storage.RemoteFile)
	for _, f := range files {
		if f.IsFolder {
			folderNames[f.ID] = f.Name
			continue
		}
		siblings[f.ParentID] = append(siblings[f.ParentID], f)
	}

	videos := common.Filter(files, func(f storage.RemoteFile) bool {
		return isCandidateVideo(f) && !identify.ExtrasFolder(folderNames[f.ParentID])
	})

	fresh, err := o.subtractKnown(ctx, videos)
	if err != nil {
		log.Error("Failed to check catalog locations", "error", err)
		return nil
	}
	rep.NewFiles += len(fresh)
	if len(fresh) == 0 {
		return nil
	}

	results, err := o.recognize(ctx, fresh, metadata.KindMovie)
	if err != nil {
		return err
	}

	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.decision.Accepted == nil {
			rep.MoviesUnresolved++
			o.metrics.File("movie", "unresolved")
			log.Debug("Movie unresolved",
				"file", r.file.Name,
				"name", r.normalized.Name,
				"year", r.normalized.Year,
				"reason", r.decision.Reason,
			)
			continue
		}
		rep.MoviesMatched++
		o.metrics.File("movie", "matched")
		o.persistMovie(ctx, log, rep, r.file, *r.decision.Accepted, siblings[r.file.ParentID])
	}
	return nil
}

func (o *Orchestrator) persistMovie(ctx context.Context, log *slog.Logger, rep *Report, file storage.RemoteFile, cand identify.Candidate, siblings []storage.RemoteFile) {
	log = log.With("file", file.ID, "external_id", cand.ExternalID)

	existing, err := o.store.Media.GetByExternalID(ctx, cand.ExternalID, library.MediaKindMovie)
	if err != nil {
		log.Error("Failed to look up media", "error", err)
		return
	}

	if existing == nil {
		media, ok := o.fetchMedia(ctx, log, metadata.KindMovie, cand.ExternalID)
		if !ok {
			return
		}
		video := newVideo(file)
		err := o.store.WithTx(ctx, func(tx *library.Store) error {
			if err := tx.Media.Create(ctx, media); err != nil {
				return err
			}
			video.MediaID = media.ID
			return tx.Videos.Create(ctx, video)
		})
		if err != nil {
			o.logWriteError(log, "Failed to store movie", err)
			return
		}
		rep.Created += 2
		o.metrics.Writes("create", 2)
		log.Info("Movie added", "name", media.Name, "year", media.Year)
		o.recordSidecars(ctx, log, subtitle.ItemTypeMovie, video.ID, file, siblings)
		return
	}

	videos, err := o.store.Videos.GetByMedia(ctx, existing.ID)
	if err != nil {
		log.Error("Failed to load videos", "error", err)
		return
	}

	if len(videos) == 0 {
		video := newVideo(file)
		video.MediaID = existing.ID
		if err := o.store.Videos.Create(ctx, video); err != nil {
			o.logWriteError(log, "Failed to store video", err)
			return
		}
		rep.Created++
		o.metrics.Writes("create", 1)
		o.recordSidecars(ctx, log, subtitle.ItemTypeMovie, video.ID, file, siblings)
		return
	}

	current := videos[0]
	oldFile, err := o.storage.GetFile(ctx, current.RemoteLocationID)
	if err != nil {
		log.Warn("Failed to stat catalogued copy", "location", current.RemoteLocationID, "error", err)
		return
	}

	relocate := func(ctx context.Context) error {
		return o.store.Videos.Relocate(ctx, current.ID, file.ID, file.Name, file.Size)
	}

	if oldFile == nil {
		if err := relocate(ctx); err != nil {
			o.logWriteError(log, "Failed to relocate video", err)
			return
		}
		rep.Updated++
		o.metrics.Writes("update", 1)
		log.Info("Movie relocated", "from", current.RemoteLocationID)
		return
	}

	repointed := false
	d, err := o.resolver.Resolve(ctx, *oldFile, file, func(ctx context.Context) error {
		if err := relocate(ctx); err != nil {
			return err
		}
		repointed = true
		return nil
	})
	rep.Conflicts++
	o.metrics.Conflict(d.String())
	if repointed {
		rep.Updated++
		o.metrics.Writes("update", 1)
	}
	if err != nil {
		log.Warn("Failed to resolve duplicate movie", "decision", d, "error", err)
		return
	}
	if d != KeepBothUndecided {
		rep.FilesDeleted++
	}
}

func (o *Orchestrator) ingestShows(ctx context.Context, log *slog.Logger, rep *Report, root string) error {
	log = log.With("root", root)

	children, err := o.storage.ListChildren(ctx, root)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Failed to list show root", "error", err)
		return nil
	}
	rep.FilesListed += len(children)

	folders := common.Filter(children, func(f storage.RemoteFile) bool {
		return f.IsFolder && !identify.ExtrasFolder(f.Name)
	})

	fresh, err := o.subtractKnown(ctx, folders)
	if err != nil {
		log.Error("Failed to check catalog locations", "error", err)
		return nil
	}
	rep.NewFiles += len(fresh)
	if len(fresh) == 0 {
		return nil
	}

	results, err := o.recognize(ctx, fresh, metadata.KindShow)
	if err != nil {
		return err
	}

	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.decision.Accepted == nil {
			rep.ShowsUnresolved++
			o.metrics.File("show", "unresolved")
			log.Debug("Show folder unresolved",
				"folder", r.file.Name,
				"name", r.normalized.Name,
				"reason", r.decision.Reason,
			)
			continue
		}
		rep.ShowsMatched++
		o.metrics.File("show", "matched")
		o.persistShowFolder(ctx, log, rep, r.file, *r.decision.Accepted)
	}
	return nil
}

func (o *Orchestrator) persistShowFolder(ctx context.Context, log *slog.Logger, rep *Report, folder storage.RemoteFile, cand identify.Candidate) {
	log = log.With("folder", folder.ID, "external_id", cand.ExternalID)

	existing, err := o.store.Media.GetByExternalID(ctx, cand.ExternalID, library.MediaKindShow)
	if err != nil {
		log.Error("Failed to look up media", "error", err)
		return
	}

	entry := &library.Folder{RemoteLocationID: folder.ID, Name: folder.Name}

	if existing == nil {
		media, ok := o.fetchMedia(ctx, log, metadata.KindShow, cand.ExternalID)
		if !ok {
			return
		}
		err := o.store.WithTx(ctx, func(tx *library.Store) error {
			if err := tx.Media.Create(ctx, media); err != nil {
				return err
			}
			entry.MediaID = media.ID
			return tx.Folders.Create(ctx, entry)
		})
		if err != nil {
			o.logWriteError(log, "Failed to store show", err)
			return
		}
		rep.Created += 2
		o.metrics.Writes("create", 2)
		log.Info("Show added", "name", media.Name, "year", media.Year)
		return
	}

	entry.MediaID = existing.ID
	if err := o.store.Folders.Create(ctx, entry); err != nil {
		o.logWriteError(log, "Failed to attach folder", err)
		return
	}
	rep.Created++
	o.metrics.Writes("create", 1)
	log.Info("Folder attached to show", "show_id", existing.ID, "name", existing.Name)

	refreshed, ok := o.fetchMedia(ctx, log, metadata.KindShow, cand.ExternalID)
	if !ok || !detailsChanged(existing, refreshed) {
		return
	}
	refreshed.ID = existing.ID
	if err := o.store.Media.UpdateDetails(ctx, refreshed); err != nil {
		o.logWriteError(log, "Failed to refresh show", err)
		return
	}
	rep.Updated++
	o.metrics.Writes("update", 1)
}

// fetchMedia builds a catalog entry from the metadata service. Missing
// artwork is not fatal; missing details are.
func (o *Orchestrator) fetchMedia(ctx context.Context, log *slog.Logger, kind metadata.Kind, externalID int) (*library.Media, bool) {
	details, err := o.meta.GetDetails(ctx, kind, externalID)
	if err != nil {
		log.Warn("Failed to fetch details", "error", err)
		return nil, false
	}

	images, err := o.meta.GetImages(ctx, kind, externalID, details.Name)
	if err != nil {
		log.Warn("Failed to fetch images", "error", err)
		images = &metadata.Images{}
	}

	m := &library.Media{
		ExternalID:  externalID,
		Kind:        library.MediaKind(kind),
		Name:        details.Name,
		Year:        details.Year,
		Overview:    details.Overview,
		PosterURL:   firstNonEmpty(images.PosterURL, details.PosterURL),
		BackdropURL: firstNonEmpty(images.BackdropURL, details.BackdropURL),
		Cast:        details.Cast,
	}
	return m, true
}

func (o *Orchestrator) logWriteError(log *slog.Logger, msg string, err error) {
	if library.IsUniqueViolation(err) {
		log.Warn(msg+", already catalogued", "error", err)
		return
	}
	log.Error(msg, "error", err)
}

func isCandidateVideo(f storage.RemoteFile) bool {
	if f.IsFolder || identify.ShouldSkip(f.Name) {
		return false
	}
	return f.IsVideo() || identify.IsVideoFile(f.Name)
}

func newVideo(f storage.RemoteFile) *library.Video {
	return &library.Video{RemoteLocationID: f.ID, FileName: f.Name, SizeBytes: f.Size}
}

func detailsChanged(a, b *library.Media) bool {
	return a.Name != b.Name || a.Year != b.Year || a.Overview != b.Overview ||
		a.PosterURL != b.PosterURL || a.BackdropURL != b.BackdropURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
