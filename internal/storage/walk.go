package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Lister lists the direct children of a folder.
type Lister interface {
	ListChildren(ctx context.Context, folderID string) ([]RemoteFile, error)
}

// SkipFunc reports whether a folder below the root whose listing failed with
// err is left out of the walk instead of aborting it. It may be called from
// several goroutines at once.
type SkipFunc func(folderID string, err error) bool

// Walk lists every descendant of rootID breadth first. Each level of the
// tree is a worklist drained by at most workers concurrent listings, so a
// deep hierarchy never grows the call stack and cancellation is observed
// between levels. The first listing error aborts the walk.
func Walk(ctx context.Context, lister Lister, rootID string, workers int) ([]RemoteFile, error) {
	return WalkSkipping(ctx, lister, rootID, workers, nil)
}

// WalkSkipping is Walk with per-folder failure isolation: subfolders for
// which skip returns true are dropped along with their subtree. A failure to
// list rootID itself always aborts.
func WalkSkipping(ctx context.Context, lister Lister, rootID string, workers int, skip SkipFunc) ([]RemoteFile, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		results []RemoteFile
	)
	frontier := []string{rootID}
	visited := map[string]bool{rootID: true}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []string
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for _, folderID := range frontier {
			g.Go(func() error {
				children, err := lister.ListChildren(gctx, folderID)
				if err != nil {
					if skip != nil && folderID != rootID && gctx.Err() == nil && skip(folderID, err) {
						return nil
					}
					return fmt.Errorf("failed to list %s: %w", folderID, err)
				}

				mu.Lock()
				defer mu.Unlock()
				for _, child := range children {
					results = append(results, child)
					if child.IsFolder && !visited[child.ID] {
						visited[child.ID] = true
						next = append(next, child.ID)
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		sort.Strings(next)
		frontier = next
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results, nil
}
