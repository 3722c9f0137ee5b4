// Package api serves the dashboard's HTTP surface: a CoinGecko-backed markets
// service and an exchangerate-api backed rates service, each reading through
// its own response cache.
//
// Every cache-backed handler follows the same flow: normalize parameters,
// derive a cache key, load through cache.Load, and tag the response with its
// provenance ("cache" or "live"). Validation errors are answered before the
// cache or upstream is consulted, and failed fetches are never stored.
//
// Routes:
//
//	GET  /api/coins                       market listing (30s)
//	GET  /api/coins/list                  coin catalog passthrough (24h)
//	GET  /api/coins/{id}/market_chart     chart passthrough (5m)
//	GET  /api/rate                        single-pair rate (store default TTL)
//	GET  /api/history                     sampled daily series (history TTL)
//	GET  /api/currencies                  supported currency codes
//	GET  /api/health, /health, /api/whoami
//	GET  /metrics
//	POST /api/cache/purge?prefix=         only when admin is enabled
package api
