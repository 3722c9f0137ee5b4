package cache

import (
	"time"
)

// Entry is a cached upstream payload.
// Entries are replaced as a whole on every Set and never mutated in place.
type Entry struct {
	// Value is the payload returned to clients (already sanitized).
	Value any

	// ExpiresAt is when the entry becomes stale. Zero means no expiry.
	ExpiresAt time.Time

	// CachedAt is when the value was stored.
	CachedAt time.Time
}

// newEntry builds an entry stored at now with the given ttl.
func newEntry(value any, now time.Time, ttl time.Duration) *Entry {
	e := &Entry{
		Value:    value,
		CachedAt: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// IsExpired reports whether the entry is stale at now.
// The boundary is exclusive: an entry is expired exactly at ExpiresAt.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// TTL returns the time until expiration at now.
// Returns 0 if already expired and -1 if the entry never expires.
func (e *Entry) TTL(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return -1
	}
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
