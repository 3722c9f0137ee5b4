package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/history"
)

// SupportedCurrencies is the fixed allow-list of currency codes.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "RWF", "KES", "UGX", "TZS", "JPY", "CNY"}

// History window bounds.
const (
	DefaultHistoryDays = 7
	MaxHistoryDays     = 30
)

// RatesConfig holds rates service configuration.
type RatesConfig struct {
	// RateTTL applies to single-pair rates; cache.DefaultExpiration uses the store default
	RateTTL time.Duration

	// HistoryTTL applies to history series
	HistoryTTL time.Duration

	// History paces the per-day sampling
	History history.Config

	// Development echoes internal error detail
	Development bool
}

// DefaultRatesConfig returns the default rates configuration.
func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		RateTTL:    cache.DefaultExpiration,
		HistoryTTL: time.Hour,
		History:    history.DefaultConfig(),
	}
}

// RateQuote is the cached value of a single-pair lookup.
type RateQuote struct {
	Rate      float64
	Timestamp string
}

// RateResponse is the body of GET /api/rate.
type RateResponse struct {
	Success   bool         `json:"success"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Rate      float64      `json:"rate"`
	Timestamp string       `json:"timestamp"`
	Source    cache.Source `json:"source"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Success bool                `json:"success"`
	From    string              `json:"from"`
	To      string              `json:"to"`
	Days    int                 `json:"days"`
	Rates   []history.DailyRate `json:"rates"`
	Source  cache.Source        `json:"source"`
}

// CurrenciesResponse is the body of GET /api/currencies.
type CurrenciesResponse struct {
	Success    bool     `json:"success"`
	Currencies []string `json:"currencies"`
}

// latestRates is the exchangerate-api /latest payload.
type latestRates struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// RatesService serves exchangerate-api backed endpoints from its own store.
type RatesService struct {
	upstream Upstream
	loader   *cache.Loader
	sampler  *history.Sampler
	config   RatesConfig
	policy   errorPolicy
	now      func() time.Time
}

// NewRatesService creates the rates service over store.
func NewRatesService(upstream Upstream, store cache.Store, cfg RatesConfig) *RatesService {
	s := &RatesService{
		upstream: upstream,
		loader:   cache.NewLoader(store),
		config:   cfg,
		policy:   errorPolicy{Development: cfg.Development},
		now:      time.Now,
	}
	s.sampler = history.NewSampler(s, cfg.History)
	return s
}

// Loader returns the service's cache loader.
func (s *RatesService) Loader() *cache.Loader {
	return s.loader
}

// PairQuery is a validated currency pair.
type PairQuery struct {
	From string
	To   string
}

// ParsePair validates from and to against SupportedCurrencies.
func ParsePair(values url.Values) (PairQuery, error) {
	q := PairQuery{
		From: strings.ToUpper(strings.TrimSpace(values.Get("from"))),
		To:   strings.ToUpper(strings.TrimSpace(values.Get("to"))),
	}
	if q.From == "" || q.To == "" {
		return q, &ValidationError{Message: "Missing required parameters: from and to"}
	}
	if !slices.Contains(SupportedCurrencies, q.From) || !slices.Contains(SupportedCurrencies, q.To) {
		return q, &ValidationError{
			Message: "Invalid currency code. Supported: " + strings.Join(SupportedCurrencies, ", "),
		}
	}
	return q, nil
}

// Key returns the single-pair cache key.
func (q PairQuery) Key() string {
	return cache.Key{
		Endpoint: "rate",
		Params:   map[string]string{"from": q.From, "to": q.To},
	}.String()
}

// LatestRate fetches the current from→to rate, bypassing the cache.
// It implements history.RateSource.
func (s *RatesService) LatestRate(ctx context.Context, from, to string) (float64, error) {
	var payload latestRates
	if err := s.upstream.GetJSON(ctx, "/"+url.PathEscape(from), nil, &payload); err != nil {
		return 0, err
	}

	rate, ok := payload.Rates[to]
	if !ok || rate <= 0 {
		return 0, &NotFoundError{Message: fmt.Sprintf("Exchange rate not found for %s", to)}
	}
	return rate, nil
}

// Rate returns the cached or live quote for a pair. A cache hit carries the
// timestamp of the first fetch.
func (s *RatesService) Rate(ctx context.Context, q PairQuery) (RateQuote, cache.Source, error) {
	return cache.Load(ctx, s.loader, q.Key(), s.config.RateTTL, func(ctx context.Context) (RateQuote, error) {
		rate, err := s.LatestRate(ctx, q.From, q.To)
		if err != nil {
			return RateQuote{}, err
		}
		return RateQuote{Rate: rate, Timestamp: formatTimestamp(s.now())}, nil
	})
}

// HistoryQuery is a validated history request.
type HistoryQuery struct {
	PairQuery
	Days int
}

// ParseHistoryQuery validates the pair and normalizes days: missing, invalid
// or non-positive values become DefaultHistoryDays, larger ones are capped at MaxHistoryDays.
func ParseHistoryQuery(values url.Values) (HistoryQuery, error) {
	pair, err := ParsePair(values)
	if err != nil {
		return HistoryQuery{PairQuery: pair}, err
	}

	days := DefaultHistoryDays
	if n, err := strconv.Atoi(values.Get("days")); err == nil && n > 0 {
		days = min(n, MaxHistoryDays)
	}
	return HistoryQuery{PairQuery: pair, Days: days}, nil
}

// Key returns the history cache key.
func (q HistoryQuery) Key() string {
	return cache.Key{
		Endpoint: "history",
		Params: map[string]string{
			"from": q.From,
			"to":   q.To,
			"days": strconv.Itoa(q.Days),
		},
	}.String()
}

// History returns a daily rate series for the pair.
func (s *RatesService) History(ctx context.Context, q HistoryQuery) ([]history.DailyRate, cache.Source, error) {
	return cache.Load(ctx, s.loader, q.Key(), s.config.HistoryTTL, func(ctx context.Context) ([]history.DailyRate, error) {
		return s.sampler.Sample(ctx, q.From, q.To, q.Days, s.now())
	})
}

func (s *RatesService) handleRate(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePair(r.URL.Query())
	if err != nil {
		writeError(w, r, "Failed to fetch exchange rate", err, s.policy)
		return
	}

	quote, source, err := s.Rate(r.Context(), q)
	if err != nil {
		writeError(w, r, "Failed to fetch exchange rate", err, s.policy)
		return
	}

	setCacheHeader(w, source)
	writeJSON(w, http.StatusOK, RateResponse{
		Success:   true,
		From:      q.From,
		To:        q.To,
		Rate:      quote.Rate,
		Timestamp: quote.Timestamp,
		Source:    source,
	})
}

func (s *RatesService) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := ParseHistoryQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, "Failed to fetch historical rates", err, s.policy)
		return
	}

	rates, source, err := s.History(r.Context(), q)
	if err != nil {
		writeError(w, r, "Failed to fetch historical rates", err, s.policy)
		return
	}

	setCacheHeader(w, source)
	writeJSON(w, http.StatusOK, HistoryResponse{
		Success: true,
		From:    q.From,
		To:      q.To,
		Days:    q.Days,
		Rates:   rates,
		Source:  source,
	})
}

func (s *RatesService) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrenciesResponse{
		Success:    true,
		Currencies: SupportedCurrencies,
	})
}
