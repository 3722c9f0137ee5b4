package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// GoCache is a Store backed by github.com/patrickmn/go-cache.
// The janitor is disabled: expired items are purged when read.
type GoCache struct {
	name string
	c    *gocache.Cache
}

// NewGoCache creates a store whose DefaultExpiration is defaultTTL.
// A defaultTTL <= 0 keeps values until the process exits.
func NewGoCache(name string, defaultTTL time.Duration) *GoCache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &GoCache{
		name: name,
		c:    gocache.New(defaultTTL, 0),
	}
}

// Name implements Store.
func (g *GoCache) Name() string {
	return g.name
}

// Get implements Store.
func (g *GoCache) Get(key string) (any, bool) {
	value, expiresAt, found := g.c.GetWithExpiration(key)
	// go-cache treats the expiry instant as still valid; align with Entry.IsExpired
	if found && !expiresAt.IsZero() && !time.Now().Before(expiresAt) {
		found = false
	}

	if !found {
		if g.purge(key) {
			CacheExpired.WithLabelValues(g.name).Inc()
		}
		CacheMisses.WithLabelValues(g.name).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(g.name).Inc()
	return value, true
}

// purge removes a stale item left behind by the disabled janitor.
func (g *GoCache) purge(key string) bool {
	// ItemCount includes expired items, Items does not
	before := g.c.ItemCount()
	g.c.Delete(key)
	after := g.c.ItemCount()
	CacheEntries.WithLabelValues(g.name).Set(float64(after))
	return after < before
}

// Set implements Store.
func (g *GoCache) Set(key string, value any, ttl time.Duration) {
	switch {
	case ttl == DefaultExpiration:
		ttl = gocache.DefaultExpiration
	case ttl < 0:
		ttl = gocache.NoExpiration
	}
	g.c.Set(key, value, ttl)

	CacheSets.WithLabelValues(g.name).Inc()
	CacheEntries.WithLabelValues(g.name).Set(float64(g.c.ItemCount()))
}

// Delete implements Store.
func (g *GoCache) Delete(key string) {
	g.c.Delete(key)
	CacheEntries.WithLabelValues(g.name).Set(float64(g.c.ItemCount()))
}

// DeletePrefix implements Store.
func (g *GoCache) DeletePrefix(prefix string) int {
	g.c.DeleteExpired()

	removed := 0
	for key := range g.c.Items() {
		if strings.HasPrefix(key, prefix) {
			g.c.Delete(key)
			removed++
		}
	}
	CacheEntries.WithLabelValues(g.name).Set(float64(g.c.ItemCount()))
	return removed
}

// Len implements Store.
func (g *GoCache) Len() int {
	return g.c.ItemCount()
}
