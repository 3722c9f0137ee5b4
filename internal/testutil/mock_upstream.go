// Package testutil provides a mock upstream server for proxy tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock of the CoinGecko and exchangerate-api
// upstreams. Paths without a handler answer 404.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
	lastQuery         string
}

// NewMockUpstream creates and starts a mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		mock.lastQuery = r.URL.RawQuery
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
	m.lastQuery = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetLatestRates configures the exchangerate-api payload for a base currency.
func (m *MockUpstream) SetLatestRates(base string, rates map[string]float64) {
	m.SetResponse("/"+strings.ToUpper(base), NewJSONResponse(ExchangeRatePayload(base, rates)))
}

// RequestCount returns the number of requests made to the server.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockUpstream) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastQuery returns the raw query of the most recent request.
func (m *MockUpstream) LastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// NewJSONResponse creates a 200 OK response carrying body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`,
		Headers: map[string]string{
			"Retry-After":  "60",
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// ExchangeRatePayload renders an exchangerate-api /latest payload.
func ExchangeRatePayload(base string, rates map[string]float64) string {
	payload := map[string]any{
		"base":              strings.ToUpper(base),
		"date":              time.Now().UTC().Format("2006-01-02"),
		"time_last_updated": time.Now().Unix(),
		"rates":             rates,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal exchange rate payload: %v", err))
	}
	return string(data)
}

// MarketRow returns a CoinGecko /coins/markets row, including fields the
// proxy is expected to strip.
func MarketRow(id, symbol string, rank int, price float64) map[string]any {
	return map[string]any{
		"id":                          id,
		"symbol":                      symbol,
		"name":                        strings.ToUpper(id[:1]) + id[1:],
		"image":                       fmt.Sprintf("https://assets.coingecko.com/coins/images/%d/large/%s.png", rank, id),
		"current_price":               price,
		"market_cap":                  price * 19_000_000,
		"market_cap_rank":             rank,
		"fully_diluted_valuation":     price * 21_000_000,
		"total_volume":                price * 400_000,
		"high_24h":                    price * 1.02,
		"low_24h":                     price * 0.97,
		"price_change_24h":            price * 0.01,
		"price_change_percentage_24h": 1.0,
		"market_cap_change_24h":       1_000_000.0,
		"circulating_supply":          19_000_000.0,
		"total_supply":                21_000_000.0,
		"max_supply":                  21_000_000.0,
		"ath":                         price * 1.5,
		"ath_change_percentage":       -33.3,
		"ath_date":                    "2024-03-14T07:10:36.635Z",
		"atl":                         price * 0.001,
		"atl_change_percentage":       99999.0,
		"atl_date":                    "2013-07-06T00:00:00.000Z",
		"roi":                         nil,
		"last_updated":                "2025-01-01T00:00:00.000Z",
	}
}

// MarketsPayload renders a /coins/markets response body from rows.
func MarketsPayload(rows ...map[string]any) string {
	data, err := json.Marshal(rows)
	if err != nil {
		panic(fmt.Sprintf("marshal markets payload: %v", err))
	}
	return string(data)
}
