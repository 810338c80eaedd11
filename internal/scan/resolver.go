package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shapedtime/cloudlib/internal/identify"
	"github.com/shapedtime/cloudlib/internal/storage"
)

// Decision is the outcome of arbitrating two copies of the same title.
type Decision int

const (
	KeepBothUndecided Decision = iota
	KeepOldDeleteNew
	KeepNewReplaceOld
)

func (d Decision) String() string {
	switch d {
	case KeepOldDeleteNew:
		return "keep_old_delete_new"
	case KeepNewReplaceOld:
		return "keep_new_replace_old"
	default:
		return "keep_both_undecided"
	}
}

// DefaultPreferredTags ranks release tags, best first.
var DefaultPreferredTags = []string{"REMUX", "BluRay"}

// Deleter removes files from remote storage.
type Deleter interface {
	DeleteFile(ctx context.Context, fileID string) error
}

// ConflictResolver decides which of two copies of a catalogued title to keep.
type ConflictResolver struct {
	storage Deleter
	// PreferredTags is ordered best first.
	PreferredTags []string
	// AllowDestructiveCleanup gates every deletion. When false all decisions
	// are KeepBothUndecided.
	AllowDestructiveCleanup bool
	log                     *slog.Logger
}

// NewConflictResolver creates a resolver. A nil tags slice uses
// DefaultPreferredTags.
func NewConflictResolver(st Deleter, preferredTags []string, allowDestructive bool) *ConflictResolver {
	if preferredTags == nil {
		preferredTags = DefaultPreferredTags
	}
	return &ConflictResolver{
		storage:                 st,
		PreferredTags:           preferredTags,
		AllowDestructiveCleanup: allowDestructive,
		log:                     slog.With("component", "conflict-resolver"),
	}
}

// Decide compares the catalogued copy with a newly found one. It never
// returns a decision that removes both.
func (r *ConflictResolver) Decide(old, incoming storage.RemoteFile) Decision {
	if !r.AllowDestructiveCleanup || old.ID == incoming.ID {
		return KeepBothUndecided
	}

	if old.Name == incoming.Name && old.Size == incoming.Size {
		return KeepOldDeleteNew
	}

	oldRank, newRank := r.tagRank(old.Name), r.tagRank(incoming.Name)
	switch {
	case newRank < oldRank:
		return KeepNewReplaceOld
	case oldRank < newRank:
		return KeepOldDeleteNew
	default:
		return KeepBothUndecided
	}
}

// tagRank is the index of the best preferred tag carried by name, or
// len(PreferredTags) when it carries none. Tags match release tokens as well
// as the parsed source and resolution, so "BluRay" also ranks "Blu-Ray" and
// "BRRip" copies.
func (r *ConflictResolver) tagRank(name string) int {
	q := identify.ParseQuality(name)
	for i, tag := range r.PreferredTags {
		if identify.HasReleaseTag(name, tag) ||
			strings.EqualFold(q.Source, tag) ||
			strings.EqualFold(q.Resolution, tag) {
			return i
		}
	}
	return len(r.PreferredTags)
}

// Resolve decides and applies the decision. repoint, when non-nil, moves the
// catalog row to the new copy and runs before the old copy is deleted.
func (r *ConflictResolver) Resolve(ctx context.Context, old, incoming storage.RemoteFile, repoint func(context.Context) error) (Decision, error) {
	d := r.Decide(old, incoming)
	return d, r.Apply(ctx, d, old, incoming, repoint)
}

// Apply carries out a decision made earlier by Decide.
func (r *ConflictResolver) Apply(ctx context.Context, d Decision, old, incoming storage.RemoteFile, repoint func(context.Context) error) error {
	switch d {
	case KeepOldDeleteNew:
		r.log.Info("Deleting duplicate copy", "keep", old.ID, "delete", incoming.ID)
		if err := r.storage.DeleteFile(ctx, incoming.ID); err != nil {
			return fmt.Errorf("failed to delete duplicate %s: %w", incoming.ID, err)
		}

	case KeepNewReplaceOld:
		if repoint != nil {
			if err := repoint(ctx); err != nil {
				return fmt.Errorf("failed to repoint catalog to %s: %w", incoming.ID, err)
			}
		}
		r.log.Info("Replacing catalogued copy", "keep", incoming.ID, "delete", old.ID)
		if err := r.storage.DeleteFile(ctx, old.ID); err != nil {
			return fmt.Errorf("failed to delete replaced copy %s: %w", old.ID, err)
		}

	default:
		r.log.Warn("Duplicate copies need manual review",
			"old", old.ID,
			"new", incoming.ID,
			"destructive_cleanup", r.AllowDestructiveCleanup,
		)
	}
	return nil
}
