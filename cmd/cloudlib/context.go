package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shapedtime/cloudlib/internal/config"
	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/metrics"
	"github.com/shapedtime/cloudlib/internal/scan"
	"github.com/shapedtime/cloudlib/internal/storage"
	"github.com/shapedtime/cloudlib/internal/subtitle"
	"github.com/shapedtime/cloudlib/internal/tmdb"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid config %s: %w", path, err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = fmt.Errorf("failed to create directories: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// app holds the wired collaborators shared by every command.
type app struct {
	cfg          *config.Config
	db           *library.DB
	store        *library.Store
	registry     *prometheus.Registry
	orchestrator *scan.Orchestrator

	closers []func() error
}

func (c *commandContext) newApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	dsn := cfg.Database.Path
	if cfg.Database.Driver == string(library.DialectPostgres) {
		dsn = cfg.Database.URL
	}
	db, err := library.Open(library.Dialect(cfg.Database.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.store = library.NewStore(db)
	slog.Info("Database initialized", "driver", cfg.Database.Driver)

	if cfg.TMDB.APIKey == "" {
		slog.Warn("TMDB API key not configured, every file will stay unresolved")
	}
	client := tmdb.NewClient(cfg.TMDB.APIKey, tmdb.Options{
		BaseURL:           cfg.TMDB.BaseURL,
		Language:          cfg.TMDB.Language,
		RequestsPerSecond: cfg.TMDB.RequestsPerSecond,
		Burst:             cfg.TMDB.Burst,
	})

	var meta metadata.Service = metadata.NewTMDB(client)
	if cfg.Cache.Enabled {
		cacheDB, err := metadata.OpenCacheDB(cfg.Cache.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, cacheDB.Close)
		meta = metadata.NewCache(meta, cacheDB, cfg.Cache.TTL())
		slog.Info("Metadata cache initialized", "path", cfg.Cache.Path, "ttl", cfg.Cache.TTL())
	}

	var scheduler subtitle.Scheduler
	if cfg.Subtitles.RedisAddr != "" {
		qs := subtitle.NewQueueScheduler(cfg.Subtitles.RedisAddr, cfg.Subtitles.Queue)
		a.closers = append(a.closers, qs.Close)
		scheduler = qs
	} else {
		scheduler = subtitle.NewLogScheduler()
	}
	subs := subtitle.NewService(subtitle.NewRepository(db.DB), scheduler, cfg.Subtitles.RequiredLanguages)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCatalogCollector(a.store),
	)
	m := metrics.New(a.registry)

	provider := storage.NewDirProvider(cfg.Storage.Root, cfg.Scan.Workers)

	a.orchestrator = scan.New(provider, meta, a.store, subs, m, scan.Options{
		MovieRoots:              cfg.Storage.MovieRoots,
		ShowRoots:               cfg.Storage.ShowRoots,
		Workers:                 cfg.Scan.Workers,
		Thorough:                cfg.Scan.Thorough,
		AdmitPlaceholders:       cfg.Scan.AdmitPlaceholders,
		AllowDestructiveCleanup: cfg.Scan.AllowDestructiveCleanup,
		PreferredTags:           cfg.Scan.PreferredReleaseTags,
		LockPath:                cfg.Scan.LockPath,
	})

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to release resource", "error", err)
		}
	}
}

