package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/api"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/client"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/config"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/history"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Configuration is read from defaults, then --config, then the environment
(PORT, COINGECKO_BASE, CG_DEMO_KEY, CURRENCY_API_URL, CACHE_TTL, HISTORY_TTL,
APP_ENV, LOG_LEVEL, LOG_PRETTY, ADMIN_ENABLED), then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := logging.Setup(logging.Config{
				Level:       logging.LogLevel(cfg.Log.Level),
				Pretty:      cfg.Log.Pretty,
				Output:      os.Stderr,
				Service:     "market-proxy",
				Environment: cfg.Environment,
			})

			cfg.ResolveAPIKey(config.NewKeyStore(""))

			server, err := buildServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, net.JoinHostPort("", strconv.Itoa(cfg.Port)), server, logger)
		},
	}

	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().Int("port", 0, "Listen port (overrides PORT)")
	cmd.Flags().String("env", "", "Environment name (overrides APP_ENV)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().Bool("pretty", false, "Human-readable console logs")

	return cmd
}

// loadConfig layers flags that were explicitly set over config.Load.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("env") {
		cfg.Environment, _ = flags.GetString("env")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty, _ = flags.GetBool("pretty")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildServer wires both upstream clients, their stores and the router.
func buildServer(cfg config.Config) (*api.Server, error) {
	cgConfig := client.DefaultConfig("coingecko", cfg.CoinGecko.BaseURL)
	cgConfig.APIKey = cfg.CoinGecko.APIKey
	cgConfig.APIKeyHeader = "x-cg-demo-api-key"
	cgConfig.Timeout = cfg.CoinGecko.Timeout
	coingecko, err := client.New(cgConfig)
	if err != nil {
		return nil, fmt.Errorf("create coingecko client: %w", err)
	}

	rateConfig := client.DefaultConfig("exchangerate", cfg.ExchangeRate.BaseURL)
	rateConfig.Timeout = cfg.ExchangeRate.Timeout
	exchangeRate, err := client.New(rateConfig)
	if err != nil {
		return nil, fmt.Errorf("create exchangerate client: %w", err)
	}

	historyTTL := cfg.Cache.HistoryTTL
	if historyTTL == 0 {
		historyTTL = cache.NoExpiration
	}

	markets := api.NewMarketsService(coingecko, cache.NewMemory("markets"), cfg.Development())
	rates := api.NewRatesService(exchangeRate, cache.NewGoCache("rates", cfg.Cache.RateTTL), api.RatesConfig{
		RateTTL:     cache.DefaultExpiration,
		HistoryTTL:  historyTTL,
		History:     history.Config{Pause: cfg.History.Pause, Timeout: cfg.History.Timeout},
		Development: cfg.Development(),
	})

	return api.NewServer(api.Config{
		Environment:  cfg.Environment,
		AdminEnabled: cfg.Admin.Enabled,
	}, markets, rates), nil
}

// run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func run(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, listener, handler, logger)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// History sampling can take several seconds per request
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listener.Addr().String()).Msg("Starting market proxy server")
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}
