package vendors

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores resolved offers keyed by normalized query tuples. A stored nil
// offer is a cached "no match" and short-circuits the lookup the same way a
// hit does. Implementations are a performance optimization only; entries may
// be evicted at any time.
type Cache interface {
	Get(key string) (*Offer, bool)
	Set(key string, offer *Offer)
	Clear()
}

// LRUCache is the default Cache, bounded by entry count.
type LRUCache struct {
	cache *lru.Cache[string, *Offer]
}

// NewLRUCache creates an LRU-backed offer cache with the given capacity.
func NewLRUCache(size int) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	cache, _ := lru.New[string, *Offer](size)
	return &LRUCache{cache: cache}
}

func (c *LRUCache) Get(key string) (*Offer, bool) {
	return c.cache.Get(key)
}

func (c *LRUCache) Set(key string, offer *Offer) {
	c.cache.Add(key, offer)
}

func (c *LRUCache) Clear() {
	c.cache.Purge()
}

func cacheKey(parts ...string) string {
	lowered := make([]string, len(parts))
	for i, part := range parts {
		lowered[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return strings.Join(lowered, "|")
}
