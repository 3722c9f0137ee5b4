package api

import (
	"context"
	"net/url"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/ratelimit"
)

// Upstream is the fetch adapter the services depend on. *client.Client implements it.
type Upstream interface {
	// Name identifies the upstream in health output
	Name() string

	// GetJSON performs one GET and decodes the JSON body into out
	GetJSON(ctx context.Context, path string, query url.Values, out any) error

	// RateLimitState reports observed upstream health
	RateLimitState() ratelimit.State
}
