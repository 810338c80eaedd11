package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
)

var _ Service = (*Cache)(nil)

// badgerLogger adapts slog for Badger's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

// OpenCacheDB opens the Badger store backing Cache. An empty path keeps
// everything in memory.
func OpenCacheDB(path string) (*badger.DB, error) {
	log := slog.With("component", "metadata-cache")

	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{log: log}).
		WithValueLogFileSize(1<<26 - 1)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata cache: %w", err)
	}

	if !opts.InMemory {
		if err := db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			db.Close()
			return nil, fmt.Errorf("failed to collect value log: %w", err)
		}
	}
	return db, nil
}

// Cache memoizes successful responses of another Service in Badger with a
// TTL. Errors are never cached, and cache failures fall through to the
// wrapped service.
type Cache struct {
	next Service
	db   *badger.DB
	ttl  time.Duration
	log  *slog.Logger
}

// NewCache wraps next with a Badger-backed response cache.
func NewCache(next Service, db *badger.DB, ttl time.Duration) *Cache {
	return &Cache{
		next: next,
		db:   db,
		ttl:  ttl,
		log:  slog.With("component", "metadata-cache"),
	}
}

func (c *Cache) SearchTitles(ctx context.Context, kind Kind, name string) ([]Title, error) {
	key := fmt.Sprintf("search:%s:%s", kind, strings.ToLower(name))
	return cached(c, key, func() ([]Title, error) {
		return c.next.SearchTitles(ctx, kind, name)
	})
}

func (c *Cache) GetDetails(ctx context.Context, kind Kind, externalID int) (*Details, error) {
	key := fmt.Sprintf("details:%s:%d", kind, externalID)
	return cached(c, key, func() (*Details, error) {
		return c.next.GetDetails(ctx, kind, externalID)
	})
}

func (c *Cache) GetEpisodeList(ctx context.Context, externalID int) ([]Episode, error) {
	key := fmt.Sprintf("episodes:%d", externalID)
	return cached(c, key, func() ([]Episode, error) {
		return c.next.GetEpisodeList(ctx, externalID)
	})
}

func (c *Cache) GetImages(ctx context.Context, kind Kind, externalID int, name string) (*Images, error) {
	key := fmt.Sprintf("images:%s:%d", kind, externalID)
	return cached(c, key, func() (*Images, error) {
		return c.next.GetImages(ctx, kind, externalID, name)
	})
}

// Invalidate drops the cached episode list and show details so the next
// thorough rescan sees fresh episode totals.
func (c *Cache) Invalidate(externalID int) error {
	keys := []string{
		fmt.Sprintf("episodes:%d", externalID),
		fmt.Sprintf("details:%s:%d", KindShow, externalID),
	}
	return c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			err := txn.Delete([]byte(key))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

func cached[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	var value T

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error {
			return json.Unmarshal(b, &value)
		})
	})
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		c.log.Warn("Cache read failed", "key", key, "error", err)
	}

	value, err = load()
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("Failed to encode cache entry", "key", key, "error", err)
		return value, nil
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(c.ttl))
	})
	if err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
	return value, nil
}
