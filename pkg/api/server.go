package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/logging"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/metrics"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Config holds server configuration.
type Config struct {
	// Environment name; "development" echoes internal error detail
	Environment string

	// AdminEnabled registers POST /api/cache/purge
	AdminEnabled bool
}

// Development reports whether internal error detail may be echoed to clients.
func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    float64           `json:"uptime"`
	Upstreams []ratelimit.State `json:"upstreams"`
}

// StatusResponse is the body of GET /health.
type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// WhoamiResponse is the body of GET /api/whoami.
type WhoamiResponse struct {
	Hostname  string `json:"hostname"`
	Timestamp string `json:"timestamp"`
}

// PurgeResponse is the body of POST /api/cache/purge.
type PurgeResponse struct {
	Success bool `json:"success"`
	Purged  int  `json:"purged"`
}

// Server routes requests to the markets and rates services.
type Server struct {
	markets *MarketsService
	rates   *RatesService
	config  Config
	logger  zerolog.Logger
	started time.Time
	handler http.Handler
}

// NewServer builds the router and middleware stack.
func NewServer(cfg Config, markets *MarketsService, rates *RatesService) *Server {
	s := &Server{
		markets: markets,
		rates:   rates,
		config:  cfg,
		logger:  logging.NewLogger("http"),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/coins", markets.handleCoins)
	mux.HandleFunc("GET /api/coins/list", markets.handleCoinList)
	mux.HandleFunc("GET /api/coins/{id}/market_chart", markets.handleChart)
	mux.HandleFunc("GET /api/rate", rates.handleRate)
	mux.HandleFunc("GET /api/history", rates.handleHistory)
	mux.HandleFunc("GET /api/currencies", rates.handleCurrencies)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleStatus)
	mux.HandleFunc("GET /api/whoami", s.handleWhoami)
	mux.Handle("GET /metrics", metrics.Handler())
	if cfg.AdminEnabled {
		mux.HandleFunc("POST /api/cache/purge", s.handlePurge)
	}
	mux.HandleFunc("/", s.handleNotFound)

	middlewares := append(requestLogging(s.logger), cors, recoverer(cfg.Development()))
	s.handler = chain(mux, middlewares...)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: formatTimestamp(time.Now()),
		Uptime:    time.Since(s.started).Seconds(),
		Upstreams: []ratelimit.State{
			s.markets.upstream.RateLimitState(),
			s.rates.upstream.RateLimitState(),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "OK",
		Timestamp: formatTimestamp(time.Now()),
	})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		writeError(w, r, "Failed to resolve hostname", err, errorPolicy{Development: s.config.Development()})
		return
	}

	writeJSON(w, http.StatusOK, WhoamiResponse{
		Hostname:  hostname,
		Timestamp: formatTimestamp(time.Now()),
	})
}

// handlePurge drops every key starting with prefix from both stores.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeError(w, r, "Failed to purge cache", &ValidationError{Message: "Missing required parameter: prefix"}, errorPolicy{})
		return
	}

	purged := 0
	for _, loader := range []*cache.Loader{s.markets.Loader(), s.rates.Loader()} {
		purged += loader.InvalidatePrefix(prefix)
	}

	writeJSON(w, http.StatusOK, PurgeResponse{Success: true, Purged: purged})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Endpoint not found"})
}
