package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/internal/testutil"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/client"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/history"
	"github.com/stretchr/testify/require"
)

// testEnv wires a Server to two mock upstreams.
type testEnv struct {
	server    *Server
	coingecko *testutil.MockUpstream
	rates     *testutil.MockUpstream
	markets   *MarketsService
	ratesSvc  *RatesService
}

type envOptions struct {
	config          Config
	upstreamTimeout time.Duration
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	coingecko := testutil.NewMockUpstream()
	t.Cleanup(coingecko.Close)
	ratesMock := testutil.NewMockUpstream()
	t.Cleanup(ratesMock.Close)

	timeout := opts.upstreamTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	cgCfg := client.DefaultConfig("coingecko", coingecko.URL())
	cgCfg.Timeout = timeout
	cgCfg.APIKey = "demo-key"
	cgCfg.APIKeyHeader = "x-cg-demo-api-key"
	cgClient, err := client.New(cgCfg)
	require.NoError(t, err)

	rateCfg := client.DefaultConfig("exchangerate", ratesMock.URL())
	rateCfg.Timeout = timeout
	rateClient, err := client.New(rateCfg)
	require.NoError(t, err)

	markets := NewMarketsService(cgClient, cache.NewMemory("markets"), opts.config.Development())

	ratesConfig := DefaultRatesConfig()
	ratesConfig.Development = opts.config.Development()
	ratesConfig.History = history.Config{Pause: time.Millisecond, Timeout: timeout}
	ratesSvc := NewRatesService(rateClient, cache.NewGoCache("rates", time.Hour), ratesConfig)

	return &testEnv{
		server:    NewServer(opts.config, markets, ratesSvc),
		coingecko: coingecko,
		rates:     ratesMock,
		markets:   markets,
		ratesSvc:  ratesSvc,
	}
}

// do performs a request against the server and returns the recorder.
func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target)
}

// decode unmarshals a recorder body into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}
