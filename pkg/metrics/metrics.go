// Package metrics provides the Prometheus registry reference and exposition
// handler for the proxy. All metrics are defined in their respective packages
// (cache, client, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache), labelled by store ("markets", "rates"):
//   - market_proxy_cache_hits_total{store} (Counter): Cache hits
//   - market_proxy_cache_misses_total{store} (Counter): Cache misses, including expired reads
//   - market_proxy_cache_expired_total{store} (Counter): Entries purged lazily on read
//   - market_proxy_cache_sets_total{store} (Counter): Values stored after a successful fetch
//   - market_proxy_cache_coalesced_total{store} (Counter): Loads that joined an in-flight fetch
//   - market_proxy_cache_entries{store} (Gauge): Current entry count
//
// Upstream Metrics (pkg/client):
//   - market_proxy_upstream_requests_total{upstream, status} (Counter): Requests by upstream and HTTP status
//   - market_proxy_upstream_request_duration_seconds{upstream} (Histogram): Request duration
//   - market_proxy_upstream_errors_total{upstream, class} (Counter): Errors by class
//     (client, server, rate_limit, network, timeout, decode)
//
// Quota Metrics (pkg/ratelimit):
//   - market_proxy_upstream_throttles_total{upstream} (Counter): 429 responses observed
//   - market_proxy_upstream_throttled{upstream} (Gauge): 1 while inside a Retry-After window
//   - market_proxy_upstream_consecutive_failures{upstream} (Gauge): Failures since the last success
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per store
//   sum by (store) (rate(market_proxy_cache_hits_total[5m])) /
//   (sum by (store) (rate(market_proxy_cache_hits_total[5m])) + sum by (store) (rate(market_proxy_cache_misses_total[5m])))
//
//   # Upstream Error Rate
//   sum by (upstream, class) (rate(market_proxy_upstream_errors_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(market_proxy_upstream_request_duration_seconds_bucket[5m]))
//
//   # Coalescing effectiveness
//   rate(market_proxy_cache_coalesced_total[5m]) / rate(market_proxy_cache_misses_total[5m])
