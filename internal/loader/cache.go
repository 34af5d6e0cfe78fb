package loader

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

// DefaultCacheSize is the number of reference data sets kept when none is configured.
const DefaultCacheSize = 8

// ReferenceLoader loads reference data for a configuration.
type ReferenceLoader interface {
	Load(ctx context.Context, cfg domain.ReferenceConfig) (*rules.ReferenceData, error)
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Loads  int64 `json:"loads"`
	Errors int64 `json:"errors"`
}

// Cache keeps loaded reference data keyed by configuration so every evaluation shares one
// immutable object per configuration. Concurrent misses for one key load once.
type Cache struct {
	loader ReferenceLoader
	logger *logrus.Logger
	items  *lru.Cache[domain.ReferenceConfig, *rules.ReferenceData]
	group  singleflight.Group

	statsMu sync.Mutex
	stats   CacheStats
}

// NewCache creates a cache holding at most size reference data sets.
func NewCache(loader ReferenceLoader, logger *logrus.Logger, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	items, err := lru.New[domain.ReferenceConfig, *rules.ReferenceData](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference cache: %w", err)
	}
	return &Cache{
		loader: loader,
		logger: logger,
		items:  items,
	}, nil
}

// Get returns the cached reference data for cfg, loading it on a miss.
func (c *Cache) Get(ctx context.Context, cfg domain.ReferenceConfig) (*rules.ReferenceData, error) {
	key := withDefaultFiles(cfg)
	key.CacheSize = 0

	if reference, ok := c.items.Get(key); ok {
		c.record(func(s *CacheStats) { s.Hits++ })
		return reference, nil
	}
	c.record(func(s *CacheStats) { s.Misses++ })

	v, err, shared := c.group.Do(cacheKey(key), func() (any, error) {
		reference, err := c.loader.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.items.Add(key, reference)
		c.record(func(s *CacheStats) { s.Loads++ })
		return reference, nil
	})
	if err != nil {
		c.record(func(s *CacheStats) { s.Errors++ })
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"reference_dir": key.Dir,
		"shared_load":   shared,
	}).Debug("Reference data cache miss")

	return v.(*rules.ReferenceData), nil
}

// Invalidate drops the entry for cfg so the next Get reloads it.
func (c *Cache) Invalidate(cfg domain.ReferenceConfig) {
	key := withDefaultFiles(cfg)
	key.CacheSize = 0
	c.items.Remove(key)
	c.logger.WithField("reference_dir", key.Dir).Info("Invalidated reference data")
}

// Len returns the number of cached reference data sets.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Cache) record(update func(*CacheStats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

func cacheKey(cfg domain.ReferenceConfig) string {
	return fmt.Sprintf("%+v", cfg)
}
