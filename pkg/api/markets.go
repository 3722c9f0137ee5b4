package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
)

// TTLs per market endpoint, matched to how fast the data changes.
const (
	CoinsTTL    = 30 * time.Second
	CoinListTTL = 24 * time.Hour
	ChartTTL    = 5 * time.Minute
)

// Pagination bounds for the market listing.
const (
	DefaultPerPage = 50
	MaxPerPage     = 250
	DefaultDays    = "7"
)

// MarketSnapshot is the sanitized per-coin market record. Upstream fields not
// listed here are dropped before caching.
type MarketSnapshot struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	ATH                      *float64 `json:"ath"`
	ATL                      *float64 `json:"atl"`
}

// CoinsResponse is the body of GET /api/coins.
type CoinsResponse struct {
	Data   []MarketSnapshot `json:"data"`
	Source cache.Source     `json:"source"`
}

// MarketsService serves CoinGecko-backed endpoints from its own store.
type MarketsService struct {
	upstream Upstream
	loader   *cache.Loader
	policy   errorPolicy
}

// NewMarketsService creates the markets service over store.
func NewMarketsService(upstream Upstream, store cache.Store, development bool) *MarketsService {
	return &MarketsService{
		upstream: upstream,
		loader:   cache.NewLoader(store),
		policy:   errorPolicy{Development: development, EchoUpstream: true},
	}
}

// Loader returns the service's cache loader.
func (s *MarketsService) Loader() *cache.Loader {
	return s.loader
}

// CoinsQuery is the normalized input of GET /api/coins.
type CoinsQuery struct {
	VsCurrency string
	PerPage    int
	Page       int
}

// ParseCoinsQuery defaults and clamps listing parameters. Invalid numbers fall
// back to defaults instead of failing the request.
func ParseCoinsQuery(values url.Values) CoinsQuery {
	q := CoinsQuery{
		VsCurrency: strings.ToLower(strings.TrimSpace(values.Get("vs_currency"))),
		PerPage:    DefaultPerPage,
		Page:       1,
	}
	if q.VsCurrency == "" {
		q.VsCurrency = "usd"
	}
	if n, err := strconv.Atoi(values.Get("per_page")); err == nil && n > 0 {
		q.PerPage = min(n, MaxPerPage)
	}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 0 {
		q.Page = n
	}
	return q
}

// Key returns the cache key for the query.
func (q CoinsQuery) Key() string {
	return cache.Key{
		Endpoint: "coins",
		Params: map[string]string{
			"vs_currency": q.VsCurrency,
			"per_page":    strconv.Itoa(q.PerPage),
			"page":        strconv.Itoa(q.Page),
		},
	}.String()
}

// Coins fetches one page of market snapshots.
func (s *MarketsService) Coins(ctx context.Context, q CoinsQuery) ([]MarketSnapshot, cache.Source, error) {
	return cache.Load(ctx, s.loader, q.Key(), CoinsTTL, func(ctx context.Context) ([]MarketSnapshot, error) {
		query := url.Values{
			"vs_currency": []string{q.VsCurrency},
			"order":       []string{"market_cap_desc"},
			"per_page":    []string{strconv.Itoa(q.PerPage)},
			"page":        []string{strconv.Itoa(q.Page)},
			"sparkline":   []string{"false"},
		}

		var rows []MarketSnapshot
		if err := s.upstream.GetJSON(ctx, "/coins/markets", query, &rows); err != nil {
			return nil, err
		}
		return sanitizeMarkets(rows), nil
	})
}

// sanitizeMarkets normalizes decoded rows; decoding into MarketSnapshot has
// already dropped every field outside the allow-list.
func sanitizeMarkets(rows []MarketSnapshot) []MarketSnapshot {
	out := make([]MarketSnapshot, len(rows))
	for i, row := range rows {
		row.Symbol = strings.ToUpper(row.Symbol)
		out[i] = row
	}
	return out
}

// CoinList fetches the coin catalog (id, symbol, name) unchanged.
func (s *MarketsService) CoinList(ctx context.Context) (json.RawMessage, cache.Source, error) {
	key := cache.Key{Endpoint: "coins:list"}.String()
	return cache.Load(ctx, s.loader, key, CoinListTTL, func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := s.upstream.GetJSON(ctx, "/coins/list", nil, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

// ChartQuery is the normalized input of GET /api/coins/{id}/market_chart.
type ChartQuery struct {
	ID         string
	VsCurrency string
	Days       string
}

// ParseChartQuery validates chart parameters. days must be a positive integer or "max".
func ParseChartQuery(id string, values url.Values) (ChartQuery, error) {
	q := ChartQuery{
		ID:         strings.TrimSpace(id),
		VsCurrency: strings.ToLower(strings.TrimSpace(values.Get("vs_currency"))),
		Days:       strings.ToLower(strings.TrimSpace(values.Get("days"))),
	}
	if q.ID == "" {
		return q, &ValidationError{Message: "Missing required parameter: id"}
	}
	if q.VsCurrency == "" {
		q.VsCurrency = "usd"
	}

	switch q.Days {
	case "":
		q.Days = DefaultDays
	case "max":
	default:
		n, err := strconv.Atoi(q.Days)
		if err != nil || n <= 0 {
			return q, &ValidationError{Message: "Invalid days: must be a positive integer or max"}
		}
		q.Days = strconv.Itoa(n)
	}
	return q, nil
}

// Key returns the cache key for the query.
func (q ChartQuery) Key() string {
	return cache.Key{
		Endpoint: "chart",
		Params: map[string]string{
			"id":          q.ID,
			"vs_currency": q.VsCurrency,
			"days":        q.Days,
		},
	}.String()
}

// Chart fetches a coin's historical market chart unchanged.
func (s *MarketsService) Chart(ctx context.Context, q ChartQuery) (json.RawMessage, cache.Source, error) {
	return cache.Load(ctx, s.loader, q.Key(), ChartTTL, func(ctx context.Context) (json.RawMessage, error) {
		query := url.Values{
			"vs_currency": []string{q.VsCurrency},
			"days":        []string{q.Days},
		}

		var raw json.RawMessage
		if err := s.upstream.GetJSON(ctx, "/coins/"+url.PathEscape(q.ID)+"/market_chart", query, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

func (s *MarketsService) handleCoins(w http.ResponseWriter, r *http.Request) {
	q := ParseCoinsQuery(r.URL.Query())

	coins, source, err := s.Coins(r.Context(), q)
	if err != nil {
		writeError(w, r, "Failed to fetch coins", err, s.policy)
		return
	}

	setCacheHeader(w, source)
	writeJSON(w, http.StatusOK, CoinsResponse{Data: coins, Source: source})
}

func (s *MarketsService) handleCoinList(w http.ResponseWriter, r *http.Request) {
	raw, source, err := s.CoinList(r.Context())
	if err != nil {
		writeError(w, r, "Failed to fetch coins list", err, s.policy)
		return
	}

	setCacheHeader(w, source)
	writeJSON(w, http.StatusOK, raw)
}

func (s *MarketsService) handleChart(w http.ResponseWriter, r *http.Request) {
	q, err := ParseChartQuery(r.PathValue("id"), r.URL.Query())
	if err != nil {
		writeError(w, r, "Failed to fetch chart data", err, s.policy)
		return
	}

	raw, source, err := s.Chart(r.Context(), q)
	if err != nil {
		writeError(w, r, "Failed to fetch chart data", err, s.policy)
		return
	}

	setCacheHeader(w, source)
	writeJSON(w, http.StatusOK, raw)
}
