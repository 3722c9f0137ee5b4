package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source is the provenance tag of a response.
type Source string

const (
	// SourceCache marks a value served from the store.
	SourceCache Source = "cache"

	// SourceLive marks a value fetched from the upstream for this request.
	SourceLive Source = "live"
)

// Loader serves values from a Store and fetches misses through a
// singleflight group, so concurrent misses for one key share one fetch.
type Loader struct {
	store  Store
	group  singleflight.Group
	logger zerolog.Logger
}

// NewLoader creates a loader over store.
func NewLoader(store Store) *Loader {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Loader{
		store:  store,
		logger: logging.NewLogger("cache").With().Str("store", store.Name()).Logger(),
	}
}

// Store returns the underlying store.
func (l *Loader) Store() Store {
	return l.store
}

// Load returns the value cached under key, or calls fetch on a miss and
// stores its result with ttl. Fetch errors are returned to every waiting
// caller and never stored.
//
// The fetch runs without the caller's cancellation: a client going away
// does not abort an upstream call other requests may be waiting on.
// Deadlines belong to the fetch itself.
func Load[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, Source, error) {
	var zero T

	if cached, ok := l.store.Get(key); ok {
		if value, ok := cached.(T); ok {
			l.logger.Debug().Str("key", key).Bool("cache_hit", true).Msg("Cache hit")
			return value, SourceCache, nil
		}
		l.logger.Warn().
			Str("key", key).
			Str("type", fmt.Sprintf("%T", cached)).
			Msg("Cached value has unexpected type, refetching")
	}

	l.logger.Debug().Str("key", key).Bool("cache_hit", false).Msg("Cache miss")

	fetchCtx := context.WithoutCancel(ctx)
	result, err, shared := l.group.Do(key, func() (any, error) {
		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		l.store.Set(key, value, ttl)
		l.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Stored response")
		return value, nil
	})
	if shared {
		CacheCoalesced.WithLabelValues(l.store.Name()).Inc()
	}
	if err != nil {
		return zero, "", err
	}

	value, ok := result.(T)
	if !ok {
		return zero, "", fmt.Errorf("cache: fetched value for %q is %T", key, result)
	}
	return value, SourceLive, nil
}

// InvalidatePrefix removes every key starting with prefix.
func (l *Loader) InvalidatePrefix(prefix string) int {
	removed := l.store.DeletePrefix(prefix)
	l.logger.Info().Str("prefix", prefix).Int("removed", removed).Msg("Cache invalidated")
	return removed
}
