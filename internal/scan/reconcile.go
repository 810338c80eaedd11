package scan

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/identify"
	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/storage"
	"github.com/shapedtime/cloudlib/internal/subtitle"
)

// seasonGroup is the set of files sharing one parent folder.
type seasonGroup struct {
	parentID string
	name     string
	files    []storage.RemoteFile
}

type pendingDeletion struct {
	decision Decision
	old      storage.RemoteFile
	incoming storage.RemoteFile
}

// reconcileShow recomputes the episode set of a show from storage and
// applies the difference to the catalog in one transaction. It returns an
// error only when ctx is cancelled.
func (o *Orchestrator) reconcileShow(ctx context.Context, log *slog.Logger, show *library.Media, thorough bool) (*ShowReport, error) {
	sr := &ShowReport{ShowID: show.ID, Name: show.Name}
	log = log.With("show_id", show.ID, "show", show.Name)

	skip := func(reason string, err error) (*ShowReport, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sr.Skipped = reason
		o.metrics.ShowSkipped(reason)
		if err != nil {
			log.Warn("Skipping show reconciliation", "reason", reason, "error", err)
		} else {
			log.Debug("Skipping show reconciliation", "reason", reason)
		}
		return sr, nil
	}

	details, err := o.meta.GetDetails(ctx, metadata.KindShow, show.ExternalID)
	if err != nil {
		return skip("metadata", err)
	}

	persisted, err := o.store.Episodes.ListByShow(ctx, show.ID)
	if err != nil {
		return skip("catalog", err)
	}

	if total := details.EpisodeTotal(); !thorough && total > 0 && len(persisted) == total {
		return skip("complete", nil)
	}

	canonical, err := o.meta.GetEpisodeList(ctx, show.ExternalID)
	if err != nil {
		return skip("metadata", err)
	}

	folders, err := o.store.Folders.GetByMedia(ctx, show.ID)
	if err != nil {
		return skip("catalog", err)
	}
	if len(folders) == 0 {
		return skip("no_folders", nil)
	}

	groups, err := o.listSeasonGroups(ctx, log, folders)
	if err != nil {
		// A partial listing would delete episodes that still exist.
		return skip("storage", err)
	}

	var placements []identify.ResolvedEpisode
	siblings := make(map[string][]storage.RemoteFile)
	for _, g := range groups {
		m, err := o.matcher.MatchSeason(ctx, g.files, g.name, canonical)
		if err != nil {
			return nil, err
		}
		placements = append(placements, m.Resolved...)
		sr.Unmatched += len(m.Skipped)
		siblings[g.parentID] = g.files
	}

	winners, pending := o.arbitrate(log, sr, placements, persisted)
	for _, w := range winners {
		if w.Placeholder {
			sr.Placeholders++
		} else {
			sr.Matched++
		}
	}

	changes := diffEpisodes(show.ID, winners, persisted)
	if err := o.store.ApplyEpisodeChanges(ctx, changes); err != nil {
		o.logWriteError(log, "Failed to apply episode changes", err)
		return skip("write_failed", err)
	}

	sr.Created = len(changes.Creates)
	sr.Updated = len(changes.Updates)
	sr.Deleted = len(changes.Deletes)
	o.metrics.Writes("create", sr.Created)
	o.metrics.Writes("update", sr.Updated)
	o.metrics.Writes("delete", sr.Deleted)

	o.purgeSubtitles(ctx, log, subtitle.ItemTypeEpisode, changes.Deletes)
	for _, e := range changes.Creates {
		w := winners[e.Key()]
		o.recordSidecars(ctx, log, subtitle.ItemTypeEpisode, e.ID, w.File, siblings[w.File.ParentID])
	}

	// Storage cleanup runs after the catalog no longer points at the losers.
	for _, p := range pending {
		if err := o.resolver.Apply(ctx, p.decision, p.old, p.incoming, nil); err != nil {
			log.Warn("Failed to remove duplicate episode", "decision", p.decision, "error", err)
			continue
		}
		sr.FilesDeleted++
	}

	if sr.Writes() > 0 {
		log.Info("Episodes reconciled",
			"created", sr.Created,
			"updated", sr.Updated,
			"deleted", sr.Deleted,
			"placeholders", sr.Placeholders,
		)
	}
	return sr, nil
}

// listSeasonGroups lists every folder of a show and groups files by parent.
// Extras folders are dropped. A folder that no longer exists contributes
// nothing; any other listing failure aborts.
func (o *Orchestrator) listSeasonGroups(ctx context.Context, log *slog.Logger, folders []*library.Folder) ([]seasonGroup, error) {
	byParent := make(map[string]*seasonGroup)

	for _, folder := range folders {
		files, err := o.storage.ListChildrenRecursive(ctx, folder.RemoteLocationID)
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("Show folder missing from storage", "folder", folder.RemoteLocationID)
			continue
		}
		if err != nil {
			return nil, err
		}

		names := map[string]string{folder.RemoteLocationID: folder.Name}
		for _, f := range files {
			if f.IsFolder {
				names[f.ID] = f.Name
			}
		}

		for _, f := range files {
			if f.IsFolder {
				continue
			}
			name := names[f.ParentID]
			if identify.ExtrasFolder(name) {
				continue
			}
			g, ok := byParent[f.ParentID]
			if !ok {
				g = &seasonGroup{parentID: f.ParentID, name: name}
				byParent[f.ParentID] = g
			}
			g.files = append(g.files, f)
		}
	}

	groups := make([]seasonGroup, 0, len(byParent))
	for _, g := range byParent {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].parentID < groups[j].parentID })
	return groups, nil
}

// arbitrate keeps one file per (season, episode). A persisted placement is
// the incumbent; otherwise the lowest location id is. Losers are either
// scheduled for deletion or left alone for manual review.
func (o *Orchestrator) arbitrate(log *slog.Logger, sr *ShowReport, placements []identify.ResolvedEpisode, persisted []*library.Episode) (map[library.EpisodeKey]identify.ResolvedEpisode, []pendingDeletion) {
	byKey := make(map[library.EpisodeKey][]identify.ResolvedEpisode)
	for _, p := range placements {
		key := library.EpisodeKey{Season: p.Season, Episode: p.Episode}
		byKey[key] = append(byKey[key], p)
	}
	incumbents := make(map[library.EpisodeKey]string, len(persisted))
	for _, e := range persisted {
		incumbents[e.Key()] = e.RemoteVideoID
	}

	winners := make(map[library.EpisodeKey]identify.ResolvedEpisode, len(byKey))
	var pending []pendingDeletion

	for _, key := range sortedKeys(byKey) {
		candidates := byKey[key]
		if len(candidates) == 1 {
			winners[key] = candidates[0]
			continue
		}

		sort.Slice(candidates, func(i, j int) bool { return candidates[i].File.ID < candidates[j].File.ID })
		idx := 0
		for i, c := range candidates {
			if c.File.ID == incumbents[key] {
				idx = i
			}
		}

		winner := candidates[idx]
		for i, c := range candidates {
			if i == idx {
				continue
			}
			sr.Conflicts++
			d := o.resolver.Decide(winner.File, c.File)
			o.metrics.Conflict(d.String())

			switch d {
			case KeepOldDeleteNew:
				pending = append(pending, pendingDeletion{d, winner.File, c.File})
			case KeepNewReplaceOld:
				pending = append(pending, pendingDeletion{d, winner.File, c.File})
				winner = c
			default:
				log.Warn("Duplicate episode files",
					"episode", common.EpisodeCode(key.Season, key.Episode),
					"kept", winner.File.ID,
					"ignored", c.File.ID,
				)
			}
		}
		winners[key] = winner
	}
	return winners, pending
}

// diffEpisodes computes the minimal batch turning persisted into winners.
// A changed location is a delete plus a create; an unchanged location only
// ever gets its metadata updated.
func diffEpisodes(showID int64, winners map[library.EpisodeKey]identify.ResolvedEpisode, persisted []*library.Episode) *library.EpisodeChanges {
	changes := &library.EpisodeChanges{}
	seen := make(map[library.EpisodeKey]bool, len(persisted))

	for _, p := range persisted {
		key := p.Key()
		seen[key] = true
		w, ok := winners[key]
		switch {
		case !ok:
			changes.Deletes = append(changes.Deletes, p.ID)
		case w.File.ID != p.RemoteVideoID:
			changes.Deletes = append(changes.Deletes, p.ID)
			changes.Creates = append(changes.Creates, newEpisode(showID, w))
		case p.Title != w.Title || p.Overview != w.Overview || p.StillURL != w.StillURL:
			updated := *p
			updated.Title = w.Title
			updated.Overview = w.Overview
			updated.StillURL = w.StillURL
			changes.Updates = append(changes.Updates, &updated)
		}
	}

	for _, key := range sortedKeys(winners) {
		if !seen[key] {
			changes.Creates = append(changes.Creates, newEpisode(showID, winners[key]))
		}
	}

	sort.SliceStable(changes.Creates, func(i, j int) bool {
		a, b := changes.Creates[i], changes.Creates[j]
		if c := cmp.Compare(a.SeasonNumber, b.SeasonNumber); c != 0 {
			return c < 0
		}
		return a.EpisodeNumber < b.EpisodeNumber
	})
	return changes
}

func newEpisode(showID int64, r identify.ResolvedEpisode) *library.Episode {
	return &library.Episode{
		ShowID:        showID,
		SeasonNumber:  r.Season,
		EpisodeNumber: r.Episode,
		RemoteVideoID: r.File.ID,
		FileName:      r.File.Name,
		SizeBytes:     r.File.Size,
		Title:         r.Title,
		Overview:      r.Overview,
		StillURL:      r.StillURL,
	}
}

func sortedKeys[V any](m map[library.EpisodeKey]V) []library.EpisodeKey {
	keys := make([]library.EpisodeKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Season != keys[j].Season {
			return keys[i].Season < keys[j].Season
		}
		return keys[i].Episode < keys[j].Episode
	})
	return keys
}
