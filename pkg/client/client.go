// Package client provides the upstream HTTP adapter used by the proxy:
// one attempt per call, a fixed timeout, optional API key header and
// normalized errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/logging"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_proxy_upstream_requests_total",
		Help: "Total upstream requests by upstream and status",
	}, []string{"upstream", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_proxy_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by upstream",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"upstream"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_proxy_upstream_errors_total",
		Help: "Total upstream errors by upstream and class",
	}, []string{"upstream", "class"})
)

// Client calls one upstream JSON API.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Name identifies the upstream in errors, logs and metrics (e.g., "coingecko")
	Name string

	// BaseURL is prepended to every request path
	BaseURL string

	// APIKey is sent in APIKeyHeader when non-empty
	APIKey       string
	APIKeyHeader string

	// UserAgent header
	UserAgent string

	// Timeout bounds every call
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(name, baseURL string) Config {
	return Config{
		Name:      name,
		BaseURL:   baseURL,
		UserAgent: "market-dashboard-proxy/1.0",
		Timeout:   5 * time.Second,
	}
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("upstream name is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.APIKey != "" && cfg.APIKeyHeader == "" {
		return nil, fmt.Errorf("api key header is required when an api key is set")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := logging.NewLogger("upstream").With().Str("upstream", cfg.Name).Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracker: ratelimit.NewTracker(cfg.Name, logging.NewLogger("ratelimit")),
		config:  cfg,
		logger:  logger,
	}, nil
}

// GetJSON performs a single GET request and decodes the JSON body into out.
// There is no retry: failures are returned to the caller immediately.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	c.logger.Debug().
		Str("endpoint", path).
		Str("query", query.Encode()).
		Msg("Executing upstream request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	upstreamRequestDuration.WithLabelValues(c.config.Name).Observe(time.Since(startTime).Seconds())

	if err != nil {
		c.tracker.RecordFailure(err)
		return c.transportError(path, err)
	}
	defer resp.Body.Close()

	c.tracker.RecordResponse(resp.StatusCode, resp.Header)
	upstreamRequestsTotal.WithLabelValues(c.config.Name, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errClass := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(c.config.Name, string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")

		return &UpstreamError{
			Upstream:   c.config.Name,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    fmt.Sprintf("%s API error %d: %s", c.config.Name, resp.StatusCode, truncateBody(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The deadline can also expire while the body is still streaming
		if isTimeout(err) {
			c.tracker.RecordFailure(err)
			return c.transportError(path, err)
		}
		upstreamErrorsTotal.WithLabelValues(c.config.Name, string(ErrorClassDecode)).Inc()
		return &UpstreamError{
			Upstream:   c.config.Name,
			StatusCode: http.StatusBadGateway,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid JSON from upstream",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("endpoint", path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Upstream request complete")

	return nil
}

// transportError normalizes a failed round trip into a TimeoutError or a network UpstreamError.
func (c *Client) transportError(path string, err error) error {
	if isTimeout(err) {
		upstreamErrorsTotal.WithLabelValues(c.config.Name, string(ErrorClassTimeout)).Inc()
		upstreamRequestsTotal.WithLabelValues(c.config.Name, "timeout").Inc()
		c.logger.Warn().Err(err).Str("endpoint", path).Dur("timeout", c.config.Timeout).Msg("Upstream request timed out")
		return &TimeoutError{
			Upstream: c.config.Name,
			Timeout:  c.config.Timeout,
			Err:      err,
		}
	}

	upstreamErrorsTotal.WithLabelValues(c.config.Name, string(ErrorClassNetwork)).Inc()
	upstreamRequestsTotal.WithLabelValues(c.config.Name, "network_error").Inc()
	c.logger.Error().Err(err).Str("endpoint", path).Msg("Upstream request failed")
	return &UpstreamError{
		Upstream:   c.config.Name,
		ErrorClass: ErrorClassNetwork,
		Message:    "request failed",
		Err:        err,
	}
}

// isTimeout reports whether err stems from a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// RateLimitState returns what has been observed about the upstream's health.
func (c *Client) RateLimitState() ratelimit.State {
	return c.tracker.State()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
