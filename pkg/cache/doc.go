// Package cache provides the in-process TTL response cache used by the proxy.
//
// The cache shields rate-limited upstream APIs (CoinGecko, exchangerate-api)
// from repeated client polling with the following features:
//
// - Per-entry absolute expiry, checked lazily on read (no background sweep)
// - Deterministic cache key generation from endpoint + normalized parameters
// - Key prefix invalidation
// - Request coalescing: concurrent misses for one key share a single fetch
// - Prometheus metrics per store
//
// # Basic Usage
//
//	store := cache.NewMemory("markets")
//	loader := cache.NewLoader(store)
//
//	key := cache.Key{
//		Endpoint: "coins",
//		Params:   map[string]string{"vs_currency": "usd", "page": "1"},
//	}
//
//	coins, source, err := cache.Load(ctx, loader, key.String(), 30*time.Second,
//		func(ctx context.Context) ([]Coin, error) {
//			return fetchCoins(ctx)
//		})
//	// source is cache.SourceCache on a hit and cache.SourceLive after a fetch
//
// # Expiry Boundary
//
// An entry is valid while now < ExpiresAt. A lookup exactly at ExpiresAt is
// a miss and purges the entry. NoExpiration stores the value until it is
// overwritten, deleted, or the process exits; DefaultExpiration applies the
// store default.
//
// # Failed Fetches
//
// Errors returned by the fetch function are handed to every waiting caller
// and are never stored, so the next request retries the upstream cleanly.
//
// # Metrics
//
//   - market_proxy_cache_hits_total{store} - Cache hits
//   - market_proxy_cache_misses_total{store} - Cache misses
//   - market_proxy_cache_expired_total{store} - Entries purged on read
//   - market_proxy_cache_sets_total{store} - Values stored
//   - market_proxy_cache_coalesced_total{store} - Loads that joined an in-flight fetch
//   - market_proxy_cache_entries{store} - Current entry count
package cache
