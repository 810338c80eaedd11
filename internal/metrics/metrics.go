package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cloudlib"

// Metrics holds scan instrumentation. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	ScanRuns       *prometheus.CounterVec
	ScanDuration   *prometheus.HistogramVec
	ScanInProgress prometheus.Gauge
	FilesProcessed *prometheus.CounterVec
	CatalogWrites  *prometheus.CounterVec
	Conflicts      *prometheus.CounterVec
	ShowsSkipped   *prometheus.CounterVec
}

// New creates and registers scan metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Scan runs by mode and result.",
		}, []string{"mode", "result"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of scan runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"mode"}),
		ScanInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "in_progress",
			Help:      "1 while a scan run holds the run lock.",
		}),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "files_total",
			Help:      "Files and folders examined by recognition, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CatalogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "writes_total",
			Help:      "Catalog rows created, updated or deleted by scans.",
		}, []string{"op"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "conflicts_total",
			Help:      "Duplicate copies arbitrated, by decision.",
		}, []string{"decision"}),
		ShowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "shows_skipped_total",
			Help:      "Shows whose episode reconciliation was skipped, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.ScanRuns,
		m.ScanDuration,
		m.ScanInProgress,
		m.FilesProcessed,
		m.CatalogWrites,
		m.Conflicts,
		m.ShowsSkipped,
	)

	return m
}

// RunStarted marks a run as holding the lock.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.ScanInProgress.Set(1)
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(mode string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ScanInProgress.Set(0)
	m.ScanRuns.WithLabelValues(mode, result).Inc()
	m.ScanDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// File counts one recognition outcome ("matched", "unresolved", "skipped").
func (m *Metrics) File(kind, outcome string) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(kind, outcome).Inc()
}

// Writes adds n catalog writes of op ("create", "update", "delete").
func (m *Metrics) Writes(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CatalogWrites.WithLabelValues(op).Add(float64(n))
}

// Conflict counts one arbitration decision.
func (m *Metrics) Conflict(decision string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(decision).Inc()
}

// ShowSkipped counts a show left unreconciled.
func (m *Metrics) ShowSkipped(reason string) {
	if m == nil {
		return
	}
	m.ShowsSkipped.WithLabelValues(reason).Inc()
}
