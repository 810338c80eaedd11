package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	TMDB      TMDBConfig      `yaml:"tmdb"`
	Cache     CacheConfig     `yaml:"cache"`
	Scan      ScanConfig      `yaml:"scan"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file
	URL    string `yaml:"url"`    // postgres connection URL
}

// StorageConfig locates the media roots. Roots are relative to Root, the
// local mount point of the remote drive.
type StorageConfig struct {
	Root       string   `yaml:"root"`
	MovieRoots []string `yaml:"movie_roots"`
	ShowRoots  []string `yaml:"show_roots"`
}

type TMDBConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Language          string  `yaml:"language"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"` // empty keeps the cache in memory
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type ScanConfig struct {
	IntervalMinutes         int      `yaml:"interval_minutes"` // 0 disables automatic scans
	Workers                 int      `yaml:"workers"`
	Thorough                bool     `yaml:"thorough"`
	AllowDestructiveCleanup bool     `yaml:"allow_destructive_cleanup"`
	AdmitPlaceholders       bool     `yaml:"admit_placeholders"`
	PreferredReleaseTags    []string `yaml:"preferred_release_tags"`
	LockPath                string   `yaml:"lock_path"`
}

// Interval returns the time between automatic scans.
func (c ScanConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

type SubtitlesConfig struct {
	RequiredLanguages []string `yaml:"required_languages"`
	RedisAddr         string   `yaml:"redis_addr"` // empty logs instead of enqueueing
	Queue             string   `yaml:"queue"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/cloudlib.db",
		},
		Storage: StorageConfig{
			Root:       "./media",
			MovieRoots: []string{"/Movies"},
			ShowRoots:  []string{"/TV Shows"},
		},
		TMDB: TMDBConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			Language:          "en-US",
			RequestsPerSecond: 20,
			Burst:             5,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Path:     "./data/cache",
			TTLHours: 72,
		},
		Scan: ScanConfig{
			IntervalMinutes:      60,
			Workers:              4,
			PreferredReleaseTags: []string{"REMUX", "BluRay"},
			LockPath:             "./data/scan.lock",
		},
		Subtitles: SubtitlesConfig{
			Queue: "subtitles",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9464,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not sqlite or postgres", c.Database.Driver))
	}

	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage.root is required"))
	}
	if len(c.Storage.MovieRoots) == 0 && len(c.Storage.ShowRoots) == 0 {
		errs = append(errs, errors.New("at least one of storage.movie_roots or storage.show_roots is required"))
	}
	for _, root := range append(append([]string{}, c.Storage.MovieRoots...), c.Storage.ShowRoots...) {
		if !strings.HasPrefix(root, "/") {
			errs = append(errs, fmt.Errorf("storage root %q must be absolute within storage.root", root))
		}
	}

	if c.TMDB.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("tmdb.requests_per_second must be positive"))
	}
	if c.Cache.Enabled && c.Cache.TTLHours <= 0 {
		errs = append(errs, errors.New("cache.ttl_hours must be positive"))
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, errors.New("scan.workers must be at least 1"))
	}
	if c.Scan.IntervalMinutes < 0 {
		errs = append(errs, errors.New("scan.interval_minutes must not be negative"))
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not debug, info, warn or error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Database.Driver == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	if c.Cache.Enabled && c.Cache.Path != "" {
		dirs = append(dirs, c.Cache.Path)
	}
	if c.Scan.LockPath != "" {
		dirs = append(dirs, filepath.Dir(c.Scan.LockPath))
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
