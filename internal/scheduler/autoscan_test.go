package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/scan"
)

type fakeRunner struct {
	mu    sync.Mutex
	runs  int
	err   error
	block chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*scan.Report, error) {
	f.mu.Lock()
	f.runs++
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &scan.Report{RunID: "run", Created: 3}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func newRunTimes(t *testing.T) *library.SyncMetadataRepository {
	t.Helper()
	db, err := library.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return library.NewStore(db).Sync
}

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestCheckAndScanFirstRun(t *testing.T) {
	ctx := context.Background()
	times := newRunTimes(t)
	runner := &fakeRunner{}
	a := NewAutoScan(runner, times, Options{Interval: time.Hour, Now: func() time.Time { return now }})

	_, status, _ := a.Status()
	assert.Equal(t, StatusPending, status)

	assert.True(t, a.checkAndScan(ctx))
	assert.Equal(t, 1, runner.count())

	lastRun, status, lastErr := a.Status()
	assert.Equal(t, StatusOK, status)
	assert.NoError(t, lastErr)
	assert.True(t, lastRun.Equal(now))
	require.NotNil(t, a.LastReport())
	assert.Equal(t, 3, a.LastReport().Created)

	stored, err := times.GetLastRunTime(ctx, RunKey)
	require.NoError(t, err)
	assert.True(t, stored.Equal(now))
}

func TestCheckAndScanRespectsInterval(t *testing.T) {
	ctx := context.Background()
	times := newRunTimes(t)
	require.NoError(t, times.SetLastRunTime(ctx, RunKey, now.Add(-30*time.Minute)))

	runner := &fakeRunner{}
	clock := now
	a := NewAutoScan(runner, times, Options{Interval: time.Hour, Now: func() time.Time { return clock }})

	assert.False(t, a.checkAndScan(ctx))
	assert.Zero(t, runner.count())

	lastRun, _, _ := a.Status()
	assert.True(t, lastRun.Equal(now.Add(-30*time.Minute)), "last run is loaded from storage")

	clock = now.Add(31 * time.Minute)
	assert.True(t, a.checkAndScan(ctx))
	assert.Equal(t, 1, runner.count())
}

func TestFailedScanKeepsLastRunTime(t *testing.T) {
	ctx := context.Background()
	times := newRunTimes(t)
	boom := errors.New("scan root not found")
	runner := &fakeRunner{err: boom}
	a := NewAutoScan(runner, times, Options{Now: func() time.Time { return now }})

	_, err := a.TriggerScan(ctx)
	assert.ErrorIs(t, err, boom)

	lastRun, status, lastErr := a.Status()
	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, lastErr, boom)
	assert.True(t, lastRun.IsZero())

	stored, err := times.GetLastRunTime(ctx, RunKey)
	require.NoError(t, err)
	assert.True(t, stored.IsZero())
}

func TestTriggerScanRejectsOverlap(t *testing.T) {
	times := newRunTimes(t)
	runner := &fakeRunner{block: make(chan struct{})}
	a := NewAutoScan(runner, times, Options{Now: func() time.Time { return now }})

	errc := make(chan error, 1)
	go func() {
		_, err := a.TriggerScan(context.Background())
		errc <- err
	}()

	require.Eventually(t, func() bool {
		_, status, _ := a.Status()
		return status == StatusInProgress && runner.count() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := a.TriggerScan(context.Background())
	assert.ErrorIs(t, err, scan.ErrScanInProgress)

	close(runner.block)
	assert.NoError(t, <-errc)

	_, status, _ := a.Status()
	assert.Equal(t, StatusOK, status)
}

func TestStartStop(t *testing.T) {
	times := newRunTimes(t)
	runner := &fakeRunner{}
	a := NewAutoScan(runner, times, Options{
		Interval:   time.Hour,
		CheckEvery: 10 * time.Millisecond,
		Now:        func() time.Time { return now },
	})

	a.Start()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	// Within the interval the loop keeps checking without running again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.count())

	a.Stop()
	a.Stop()
}

func TestStopCancelsScheduledRun(t *testing.T) {
	times := newRunTimes(t)
	runner := &fakeRunner{block: make(chan struct{})}
	a := NewAutoScan(runner, times, Options{Now: func() time.Time { return now }})

	a.Start()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	a.Stop()

	_, status, lastErr := a.Status()
	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, lastErr, context.Canceled)
}
