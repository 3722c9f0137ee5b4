package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNoSamples is returned when no day in the window produced a rate.
var ErrNoSamples = errors.New("no historical samples")

// dateLayout is the format of DailyRate.Date.
const dateLayout = "2006-01-02"

// Config holds sampler configuration
type Config struct {
	// Pause is the minimum spacing between successive sub-requests
	Pause time.Duration
	// Timeout per sub-request
	Timeout time.Duration
}

// DefaultConfig returns the default pacing: 100ms apart, 3s per sub-request
func DefaultConfig() Config {
	return Config{
		Pause:   100 * time.Millisecond,
		Timeout: 3 * time.Second,
	}
}

// RateSource returns the latest from→to rate.
type RateSource interface {
	LatestRate(ctx context.Context, from, to string) (float64, error)
}

// DailyRate is one point of the series.
type DailyRate struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// Sampler queries a RateSource once per day of a window.
type Sampler struct {
	source RateSource
	config Config
	logger zerolog.Logger
}

// NewSampler creates a new sampler
func NewSampler(source RateSource, config Config) *Sampler {
	if config.Pause < 0 {
		config.Pause = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}

	return &Sampler{
		source: source,
		config: config,
		logger: logging.NewLogger("history"),
	}
}

// Sample returns up to days rates ending at today, oldest first.
// Days whose sub-request fails are omitted; if all fail the last error is
// returned wrapped in ErrNoSamples. A cancelled ctx stops sampling and
// returns what was collected so far together with ctx's error.
func (s *Sampler) Sample(ctx context.Context, from, to string, days int, today time.Time) ([]DailyRate, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be > 0 (got %d)", days)
	}

	start := time.Now()
	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.config.Pause > 0 {
		limiter = rate.NewLimiter(rate.Every(s.config.Pause), 1)
	}

	today = today.UTC()
	rates := make([]DailyRate, 0, days)
	var lastErr error

	for i := days - 1; i >= 0; i-- {
		if err := limiter.Wait(ctx); err != nil {
			return rates, err
		}

		date := today.AddDate(0, 0, -i).Format(dateLayout)

		dayCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		value, err := s.source.LatestRate(dayCtx, from, to)
		cancel()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rates, ctxErr
			}
			lastErr = err
			s.logger.Warn().
				Err(err).
				Str("from", from).
				Str("to", to).
				Str("date", date).
				Msg("Historical sample failed")
			continue
		}

		rates = append(rates, DailyRate{Date: date, Rate: value})
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("%w for %s/%s over %d days: %w", ErrNoSamples, from, to, days, lastErr)
	}

	s.logger.Debug().
		Str("from", from).
		Str("to", to).
		Int("samples", len(rates)).
		Int("days", days).
		Dur("duration", time.Since(start)).
		Msg("History sampled")

	return rates, nil
}
