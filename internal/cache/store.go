package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/models"
)

var bucketResults = []byte("results")

// ResultCache holds completed generation results for the validity window.
// Lookups hit an in-memory cache first and fall back to a bbolt file, so
// completed results survive process restarts until they expire.
type ResultCache struct {
	mem    *gocache.Cache
	db     *bbolt.DB
	ttl    time.Duration
	logger *logrus.Logger
}

// entry is the persisted form of a cached result.
type entry struct {
	Result    models.GenerationResult `json:"result"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// NewResultCache opens the result cache under cfg.Directory.
func NewResultCache(cfg config.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(cfg.Directory, "results.db"), 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResults)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &ResultCache{
		mem:    gocache.New(ttl, 10*time.Minute),
		db:     db,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Get returns the cached result for key if present and still valid.
func (c *ResultCache) Get(key string) (*models.GenerationResult, bool) {
	if v, ok := c.mem.Get(key); ok {
		result := v.(models.GenerationResult)
		return &result, true
	}

	var e entry
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketResults).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Result cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	if time.Now().After(e.ExpiresAt) {
		// Expired on disk: drop it so the bucket doesn't grow unbounded.
		if derr := c.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketResults).Delete([]byte(key))
		}); derr != nil {
			c.logger.WithError(derr).Warn("Failed to evict expired cache entry")
		}
		return nil, false
	}

	c.mem.Set(key, e.Result, time.Until(e.ExpiresAt))
	return &e.Result, true
}

// Put stores a completed result under key for the validity window.
// The write to disk is atomic per key; a failed persist still leaves the
// in-memory copy serving until restart.
func (c *ResultCache) Put(key string, result *models.GenerationResult) {
	expiresAt := time.Now().Add(c.ttl)
	c.mem.Set(key, *result, c.ttl)

	raw, err := json.Marshal(entry{Result: *result, ExpiresAt: expiresAt})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode cache entry")
		return
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketResults).Put([]byte(key), raw)
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Result cache write failed")
	}
}

// Close releases the underlying bbolt file.
func (c *ResultCache) Close() error {
	return c.db.Close()
}
