package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream quota tracking.
var (
	upstreamThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_proxy_upstream_throttles_total",
		Help: "Total number of 429 responses received from an upstream",
	}, []string{"upstream"})

	upstreamThrottled = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "market_proxy_upstream_throttled",
		Help: "1 while an upstream Retry-After window is open",
	}, []string{"upstream"})

	upstreamConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "market_proxy_upstream_consecutive_failures",
		Help: "Consecutive failed calls to an upstream since the last success",
	}, []string{"upstream"})
)

// Tracker records upstream responses for one upstream. Safe for concurrent use.
type Tracker struct {
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// NewTracker creates a new tracker for the named upstream.
func NewTracker(upstream string, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		logger: logger,
		now:    time.Now,
		state: State{
			Upstream:  upstream,
			IsHealthy: true,
		},
	}
	return t
}

// RecordResponse updates state from an upstream HTTP response.
func (t *Tracker) RecordResponse(status int, headers http.Header) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.state
	s.LastStatus = status
	s.LastUpdate = now

	switch {
	case status == http.StatusTooManyRequests:
		s.ConsecutiveFailures++
		s.Throttles++
		s.ThrottledUntil = now.Add(parseRetryAfter(headers.Get("Retry-After"), now))
		upstreamThrottlesTotal.WithLabelValues(s.Upstream).Inc()

		t.logger.Warn().
			Str("upstream", s.Upstream).
			Time("throttled_until", s.ThrottledUntil).
			Int64("throttles", s.Throttles).
			Msg("Upstream rate limit hit")
	case status >= 500:
		s.ConsecutiveFailures++
	default:
		s.ConsecutiveFailures = 0
	}

	t.publish(now)
}

// RecordFailure updates state after a transport failure or timeout.
func (t *Tracker) RecordFailure(err error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.state
	s.LastStatus = 0
	s.LastUpdate = now
	s.ConsecutiveFailures++

	t.logger.Debug().
		Err(err).
		Str("upstream", s.Upstream).
		Int("consecutive_failures", s.ConsecutiveFailures).
		Msg("Upstream call failed")

	t.publish(now)
}

// publish refreshes health and metrics. Caller holds t.mu.
func (t *Tracker) publish(now time.Time) {
	s := &t.state
	wasHealthy := s.IsHealthy
	s.UpdateHealth(now)

	throttled := 0.0
	if s.IsThrottled(now) {
		throttled = 1
	}
	upstreamThrottled.WithLabelValues(s.Upstream).Set(throttled)
	upstreamConsecutiveFailures.WithLabelValues(s.Upstream).Set(float64(s.ConsecutiveFailures))

	if wasHealthy && !s.IsHealthy {
		t.logger.Error().
			Str("upstream", s.Upstream).
			Int("consecutive_failures", s.ConsecutiveFailures).
			Int("last_status", s.LastStatus).
			Msg("Upstream marked unhealthy")
	} else if !wasHealthy && s.IsHealthy {
		t.logger.Info().Str("upstream", s.Upstream).Msg("Upstream recovered")
	}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.UpdateHealth(now)
	return t.state
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return DefaultThrottleWindow
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultThrottleWindow
}
