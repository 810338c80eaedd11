package scan

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// ErrScanInProgress is returned when another run holds the run lock.
var ErrScanInProgress = errors.New("scan already in progress")

// runLock keeps runs from overlapping within the process and, when a lock
// path is configured, across processes sharing the catalog.
type runLock struct {
	running atomic.Bool
	file    *flock.Flock
}

func newRunLock(path string) *runLock {
	l := &runLock{}
	if path != "" {
		l.file = flock.New(path)
	}
	return l
}

// acquire returns a release func, or ErrScanInProgress.
func (l *runLock) acquire() (func(), error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}

	if l.file != nil {
		ok, err := l.file.TryLock()
		if err != nil {
			l.running.Store(false)
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			l.running.Store(false)
			return nil, ErrScanInProgress
		}
	}

	return func() {
		if l.file != nil {
			_ = l.file.Unlock()
		}
		l.running.Store(false)
	}, nil
}
