package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Stats counts lookups answered from memory
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// MemoryCache keeps WHOIS and MX answers in process memory. go-cache
// evicts expired entries every cleanup interval.
type MemoryCache struct {
	store  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemoryCache creates a memory cache. A zero ttl on Set uses defaultTTL.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.store.Get(key)
	data, ok := val.([]byte)
	if !found || !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set copies value so later mutation by the caller cannot leak into the cache
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}

// Stats reports hit and miss counts since creation
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.store.ItemCount(),
	}
}
