package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/cache"
	"github.com/rs/zerolog/log"
)

// timestampLayout renders millisecond UTC timestamps (2025-01-02T15:04:05.000Z).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// setCacheHeader mirrors the response source in X-Cache. Passthrough payloads carry no source field.
func setCacheHeader(w http.ResponseWriter, source cache.Source) {
	if source == cache.SourceCache {
		w.Header().Set("X-Cache", "HIT")
		return
	}
	w.Header().Set("X-Cache", "MISS")
}
