// Package scheduler runs library scans in the background.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shapedtime/cloudlib/internal/scan"
)

// RunKey is the sync_metadata key holding the last completed scan.
const RunKey = "scan"

// Status values reported by AutoScan.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusOK         = "ok"
	StatusError      = "error"
)

// Runner performs one full scan.
type Runner interface {
	Run(ctx context.Context) (*scan.Report, error)
}

// RunTimes persists completion times across restarts.
type RunTimes interface {
	GetLastRunTime(ctx context.Context, key string) (time.Time, error)
	SetLastRunTime(ctx context.Context, key string, t time.Time) error
}

// Options configures an AutoScan.
type Options struct {
	// Interval between completed scans.
	Interval time.Duration
	// CheckEvery is how often the loop looks at the last run time.
	CheckEvery time.Duration
	// Timeout bounds a single scheduled run.
	Timeout time.Duration
	Now     func() time.Time
}

// AutoScan triggers a full scan whenever the last completed one is older
// than the configured interval.
type AutoScan struct {
	mu     sync.RWMutex
	runner Runner
	times  RunTimes
	opts   Options

	lastRun    time.Time
	status     string
	lastError  error
	lastReport *scan.Report

	stopChan chan struct{}
	done     chan struct{}
	stopped  bool
	log      *slog.Logger
}

// NewAutoScan creates a scheduler. Zero options fall back to hourly scans
// checked every minute.
func NewAutoScan(runner Runner, times RunTimes, opts Options) *AutoScan {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = time.Minute
	}
	if opts.CheckEvery > opts.Interval {
		opts.CheckEvery = opts.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AutoScan{
		runner:   runner,
		times:    times,
		opts:     opts,
		status:   StatusPending,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		log:      slog.With("component", "autoscan"),
	}
}

// Start begins the background loop.
func (a *AutoScan) Start() {
	a.log.Info("Automatic scans started",
		"interval", a.opts.Interval,
		"check_every", a.opts.CheckEvery,
	)
	go a.loop()
}

// Stop halts the loop and waits for an in-flight scheduled run to observe
// cancellation.
func (a *AutoScan) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	close(a.stopChan)
	<-a.done
	a.log.Info("Automatic scans stopped")
}

// TriggerScan runs a scan now, regardless of the interval.
func (a *AutoScan) TriggerScan(ctx context.Context) (*scan.Report, error) {
	if !a.begin() {
		return nil, scan.ErrScanInProgress
	}
	return a.doScan(ctx)
}

// Status returns the last completion time, the current status and the
// error of the last failed run.
func (a *AutoScan) Status() (lastRun time.Time, status string, lastError error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRun, a.status, a.lastError
}

// LastReport returns the report of the last completed run, if any.
func (a *AutoScan) LastReport() *scan.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReport
}

func (a *AutoScan) loop() {
	defer close(a.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	a.checkAndScan(ctx)

	ticker := time.NewTicker(a.opts.CheckEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.checkAndScan(ctx)
		}
	}
}

// checkAndScan runs a scan when the interval has elapsed. It reports
// whether a scan was started.
func (a *AutoScan) checkAndScan(ctx context.Context) bool {
	lastRun, err := a.times.GetLastRunTime(ctx, RunKey)
	if err != nil {
		a.log.Error("Failed to get last scan time", "error", err)
		return false
	}

	a.mu.Lock()
	if a.lastRun.IsZero() {
		a.lastRun = lastRun
	}
	a.mu.Unlock()

	if a.opts.Now().Sub(lastRun) < a.opts.Interval {
		return false
	}
	if !a.begin() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	if _, err := a.doScan(ctx); err != nil {
		a.log.Error("Scheduled scan failed", "error", err)
	}
	return true
}

// begin moves the status to in_progress unless a run is already active.
func (a *AutoScan) begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusInProgress {
		return false
	}
	a.status = StatusInProgress
	return true
}

func (a *AutoScan) doScan(ctx context.Context) (*scan.Report, error) {
	a.log.Info("Starting automatic scan")

	rep, err := a.runner.Run(ctx)
	if err != nil {
		a.setError(err)
		return rep, err
	}

	a.setSuccess(ctx, rep)
	return rep, nil
}

func (a *AutoScan) setError(err error) {
	a.mu.Lock()
	a.status = StatusError
	a.lastError = err
	a.mu.Unlock()
}

func (a *AutoScan) setSuccess(ctx context.Context, rep *scan.Report) {
	now := a.opts.Now()
	if err := a.times.SetLastRunTime(ctx, RunKey, now); err != nil {
		a.log.Error("Failed to record scan time", "error", err)
	}

	a.mu.Lock()
	a.lastRun = now
	a.status = StatusOK
	a.lastError = nil
	a.lastReport = rep
	a.mu.Unlock()
}
