// Package ratelimit observes upstream quota signals (HTTP 429, Retry-After)
// and consecutive failures so operators can see when an upstream is
// degrading the proxy. It never blocks or retries requests.
package ratelimit

import (
	"time"
)

// Thresholds for upstream health decisions.
const (
	// FailureThresholdUnhealthy marks an upstream unhealthy after this many
	// consecutive failed responses.
	FailureThresholdUnhealthy = 3

	// DefaultThrottleWindow is assumed when a 429 carries no usable Retry-After header.
	DefaultThrottleWindow = 60 * time.Second
)

// State is a snapshot of what the proxy has observed about one upstream.
type State struct {
	// Upstream is the upstream name (e.g., "coingecko").
	Upstream string `json:"upstream"`

	// LastStatus is the HTTP status of the most recent response (0 for transport failures).
	LastStatus int `json:"last_status"`

	// LastUpdate is when the most recent response or failure was recorded.
	LastUpdate time.Time `json:"last_update"`

	// ConsecutiveFailures counts failed calls since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// Throttles counts 429 responses since process start.
	Throttles int64 `json:"throttles"`

	// ThrottledUntil is derived from the last Retry-After header.
	ThrottledUntil time.Time `json:"throttled_until,omitempty"`

	// IsHealthy is true while ConsecutiveFailures < FailureThresholdUnhealthy
	// and the upstream is not throttling us.
	IsHealthy bool `json:"is_healthy"`
}

// IsThrottled returns true while the last Retry-After window is open.
func (s *State) IsThrottled(now time.Time) bool {
	return now.Before(s.ThrottledUntil)
}

// UpdateHealth updates the IsHealthy field at now.
func (s *State) UpdateHealth(now time.Time) {
	s.IsHealthy = s.ConsecutiveFailures < FailureThresholdUnhealthy && !s.IsThrottled(now)
}
