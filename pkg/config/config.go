// Package config loads proxy configuration from defaults, an optional YAML
// file and the environment, in that order of precedence (later wins).
// Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the full proxy configuration.
type Config struct {
	// Port is the HTTP listen port
	Port int `yaml:"port"`

	// Environment controls whether internal error detail reaches clients
	Environment string `yaml:"environment"`

	CoinGecko    UpstreamConfig `yaml:"coingecko"`
	ExchangeRate UpstreamConfig `yaml:"exchangerate"`
	Cache        CacheConfig    `yaml:"cache"`
	History      HistoryConfig  `yaml:"history"`
	Log          LogConfig      `yaml:"log"`
	Admin        AdminConfig    `yaml:"admin"`
}

// UpstreamConfig configures one upstream API.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey is only sent to CoinGecko; the exchange-rate endpoint is keyless
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds TTLs that are not fixed per endpoint.
type CacheConfig struct {
	// RateTTL is the default TTL of the rates store
	RateTTL time.Duration `yaml:"rate_ttl"`

	// HistoryTTL applies to sampled history series
	HistoryTTL time.Duration `yaml:"history_ttl"`
}

// HistoryConfig paces history sampling.
type HistoryConfig struct {
	Pause   time.Duration `yaml:"pause"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// AdminConfig gates operational endpoints.
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        3000,
		Environment: EnvProduction,
		CoinGecko: UpstreamConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: 5 * time.Second,
		},
		ExchangeRate: UpstreamConfig{
			BaseURL: "https://api.exchangerate-api.com/v4/latest",
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			RateTTL:    time.Hour,
			HistoryTTL: time.Hour,
		},
		History: HistoryConfig{
			Pause:   100 * time.Millisecond,
			Timeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (if non-empty)
// and then the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.ApplyYAML(data); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ApplyYAML overlays the fields present in data. Unknown keys are rejected.
func (c *Config) ApplyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup.
// TTL variables are whole seconds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := get("APP_ENV"); ok {
		c.Environment = strings.ToLower(v)
	}
	if v, ok := get("COINGECKO_BASE"); ok {
		c.CoinGecko.BaseURL = v
	}
	if v, ok := get("CG_DEMO_KEY"); ok {
		c.CoinGecko.APIKey = v
	}
	if v, ok := get("CURRENCY_API_URL"); ok {
		c.ExchangeRate.BaseURL = v
	}
	if v, ok := get("CACHE_TTL"); ok {
		ttl, err := parseSeconds("CACHE_TTL", v)
		if err != nil {
			return err
		}
		c.Cache.RateTTL = ttl
	}
	if v, ok := get("HISTORY_TTL"); ok {
		ttl, err := parseSeconds("HISTORY_TTL", v)
		if err != nil {
			return err
		}
		c.Cache.HistoryTTL = ttl
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("LOG_PRETTY"); ok {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		c.Log.Pretty = pretty
	}
	if v, ok := get("ADMIN_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_ENABLED %q: %w", v, err)
		}
		c.Admin.Enabled = enabled
	}

	return nil
}

func parseSeconds(name, value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be whole seconds", name, value)
	}
	return time.Duration(seconds) * time.Second, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.CoinGecko.BaseURL == "" {
		return fmt.Errorf("coingecko base url is required")
	}
	if c.ExchangeRate.BaseURL == "" {
		return fmt.Errorf("exchangerate base url is required")
	}
	if c.CoinGecko.Timeout <= 0 || c.ExchangeRate.Timeout <= 0 {
		return fmt.Errorf("upstream timeouts must be > 0")
	}
	if c.Cache.RateTTL < 0 {
		return fmt.Errorf("rate ttl must be >= 0 (got %s)", c.Cache.RateTTL)
	}
	if c.Cache.HistoryTTL < 0 {
		return fmt.Errorf("history ttl must be >= 0 (got %s)", c.Cache.HistoryTTL)
	}
	if c.History.Pause < 0 || c.History.Timeout <= 0 {
		return fmt.Errorf("history pause must be >= 0 and timeout > 0")
	}
	return nil
}

// Development reports whether the environment is development.
func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}
