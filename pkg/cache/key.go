package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response by logical endpoint and normalized parameters.
type Key struct {
	// Endpoint is the logical endpoint name (e.g., "coins", "chart", "rate")
	Endpoint string

	// Params are the normalized request parameters (e.g., {"vs_currency": "usd"})
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: endpoint:param1=val1:param2=val2, values query-escaped so a
// value containing ':' or '=' cannot collide with another parameter set.
//
// Example:
//
//	coins:page=1:per_page=50:vs_currency=usd
func (k Key) String() string {
	parts := []string{strings.Trim(k.Endpoint, "/:")}

	// Params sorted for determinism
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, url.QueryEscape(k.Params[name])))
		}
	}

	return strings.Join(parts, ":")
}

// Prefix returns the key prefix shared by every key of the endpoint.
// Used for prefix invalidation.
func (k Key) Prefix() string {
	return strings.Trim(k.Endpoint, "/:") + ":"
}
