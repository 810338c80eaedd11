package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/cloudlib/internal/library"
)

// CountsSource reports catalog totals.
type CountsSource interface {
	Counts(ctx context.Context) (*library.Counts, error)
}

// CatalogCollector implements prometheus.Collector for catalog totals.
// It queries the store lazily on each Prometheus scrape rather than
// maintaining duplicate state.
type CatalogCollector struct {
	source  CountsSource
	timeout time.Duration

	media        *prometheus.Desc
	videos       *prometheus.Desc
	folders      *prometheus.Desc
	episodes     *prometheus.Desc
	placeholders *prometheus.Desc
	up           *prometheus.Desc
}

// NewCatalogCollector creates a collector that reads catalog counts on demand.
func NewCatalogCollector(source CountsSource) *CatalogCollector {
	return &CatalogCollector{
		source:  source,
		timeout: 5 * time.Second,

		media: prometheus.NewDesc(
			namespace+"_catalog_media",
			"Recognized titles in the catalog by kind.",
			[]string{"kind"}, nil,
		),
		videos: prometheus.NewDesc(
			namespace+"_catalog_videos",
			"Movie files in the catalog.",
			nil, nil,
		),
		folders: prometheus.NewDesc(
			namespace+"_catalog_folders",
			"Show folders in the catalog.",
			nil, nil,
		),
		episodes: prometheus.NewDesc(
			namespace+"_catalog_episodes",
			"Episode files in the catalog.",
			nil, nil,
		),
		placeholders: prometheus.NewDesc(
			namespace+"_catalog_placeholder_episodes",
			"Episode files not matched to a canonical episode.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			namespace+"_catalog_up",
			"Whether the last catalog query succeeded.",
			nil, nil,
		),
	}
}

// Describe sends all metric descriptors to the channel.
func (c *CatalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.media
	ch <- c.videos
	ch <- c.folders
	ch <- c.episodes
	ch <- c.placeholders
	ch <- c.up
}

// Collect queries the catalog and sends current values.
func (c *CatalogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.source.Counts(ctx)
	if err != nil {
		slog.Warn("Failed to collect catalog counts", "component", "metrics", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.media, prometheus.GaugeValue, float64(counts.Movies), string(library.MediaKindMovie))
	ch <- prometheus.MustNewConstMetric(c.media, prometheus.GaugeValue, float64(counts.Shows), string(library.MediaKindShow))
	ch <- prometheus.MustNewConstMetric(c.videos, prometheus.GaugeValue, float64(counts.Videos))
	ch <- prometheus.MustNewConstMetric(c.folders, prometheus.GaugeValue, float64(counts.Folders))
	ch <- prometheus.MustNewConstMetric(c.episodes, prometheus.GaugeValue, float64(counts.Episodes))
	ch <- prometheus.MustNewConstMetric(c.placeholders, prometheus.GaugeValue, float64(counts.PlaceholderEpisodes))
}
