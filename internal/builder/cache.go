package builder

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/runtime"
)

// Default cache timings.
const (
	DefaultRuntimeTTL      = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// RuntimeCache keeps built runtimes per family and project. Concurrent
// misses for the same key share one factory call.
type RuntimeCache struct {
	cache *gocache.Cache
	group singleflight.Group
	ttl   time.Duration
}

// NewRuntimeCache creates a cache. Non-positive durations fall back to the
// defaults.
func NewRuntimeCache(ttl, cleanupInterval time.Duration) *RuntimeCache {
	if ttl <= 0 {
		ttl = DefaultRuntimeTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &RuntimeCache{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func cacheKey(family, project string) string {
	return family + "|" + project
}

// GetOrBuild returns the cached runtime for family and project, calling
// build on a miss. Errors are not cached.
func (c *RuntimeCache) GetOrBuild(family, project string, build func() (runtime.Runtime, error)) (runtime.Runtime, error) {
	key := cacheKey(family, project)
	if rt, ok := c.get(key); ok {
		log.Debug(log.CatCache, "Runtime cache hit", "key", key)
		return rt, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if rt, ok := c.get(key); ok {
			return rt, nil
		}
		rt, err := build()
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, rt, c.ttl)
		return rt, nil
	})
	if err != nil {
		return nil, err
	}

	rt, ok := v.(runtime.Runtime)
	if !ok {
		return nil, fmt.Errorf("runtime cache: unexpected value %T for %s", v, key)
	}
	log.Debug(log.CatCache, "Runtime cache miss", "key", key, "shared", shared)
	return rt, nil
}

func (c *RuntimeCache) get(key string) (runtime.Runtime, bool) {
	v, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	rt, ok := v.(runtime.Runtime)
	if !ok {
		log.Error(log.CatCache, "wrong type in runtime cache", "key", key)
		return nil, false
	}
	return rt, true
}

// Invalidate drops the runtime of family and project.
func (c *RuntimeCache) Invalidate(family, project string) {
	c.cache.Delete(cacheKey(family, project))
}

// Flush drops every cached runtime.
func (c *RuntimeCache) Flush() {
	c.cache.Flush()
}

// Len returns the number of cached runtimes, including expired ones not yet
// cleaned up.
func (c *RuntimeCache) Len() int {
	return c.cache.ItemCount()
}
