package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store ("markets", "rates")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_proxy_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"store"},
	)

	// CacheMisses tracks cache misses by store
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_proxy_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"store"},
	)

	// CacheExpired tracks entries purged lazily at read time
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_proxy_cache_expired_total",
			Help: "Total number of expired entries purged on read",
		},
		[]string{"store"},
	)

	// CacheSets tracks values written to the store
	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_proxy_cache_sets_total",
			Help: "Total number of values stored in the response cache",
		},
		[]string{"store"},
	)

	// CacheCoalesced tracks loads that shared an in-flight fetch
	CacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_proxy_cache_coalesced_total",
			Help: "Total number of cache misses served by an in-flight fetch for the same key",
		},
		[]string{"store"},
	)

	// CacheEntries tracks the current number of entries by store
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_proxy_cache_entries",
			Help: "Current number of entries in the response cache",
		},
		[]string{"store"},
	)
)
