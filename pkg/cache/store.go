package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	// NoExpiration stores a value until it is overwritten, deleted, or the process exits.
	NoExpiration time.Duration = -1

	// DefaultExpiration stores a value with the store's default TTL.
	DefaultExpiration time.Duration = 0
)

// Store is a key/value store with per-entry expiry.
type Store interface {
	// Name identifies the store in logs and metrics.
	Name() string

	// Get returns the value stored under key if it has not expired.
	// Expired entries are deleted and reported as absent.
	Get(key string) (any, bool)

	// Set stores value under key, replacing any existing entry.
	// DefaultExpiration uses the store default, NoExpiration disables expiry.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a single key.
	Delete(key string)

	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(prefix string) int

	// Len returns the number of stored entries, including expired ones not yet purged.
	Len() int
}

// Memory is a map-backed Store guarded by a mutex.
// It has no size bound and no background sweep.
type Memory struct {
	name       string
	now        func() time.Time
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[string]*Entry
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithDefaultTTL sets the TTL applied when Set is called with DefaultExpiration.
// Without it such values never expire.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		m.defaultTTL = ttl
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(name string, opts ...MemoryOption) *Memory {
	m := &Memory{
		name:    name,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Store.
func (m *Memory) Name() string {
	return m.name
}

// Get implements Store.
func (m *Memory) Get(key string) (any, bool) {
	entry, ok := m.Entry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Entry returns the full cache entry for key if it has not expired.
func (m *Memory) Entry(key string) (*Entry, bool) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(m.name).Inc()
		return nil, false
	}

	if entry.IsExpired(now) {
		m.mu.Lock()
		// Only purge if nobody replaced the entry since the read above
		if current, ok := m.entries[key]; ok && current == entry {
			delete(m.entries, key)
			CacheEntries.WithLabelValues(m.name).Set(float64(len(m.entries)))
		}
		m.mu.Unlock()

		CacheExpired.WithLabelValues(m.name).Inc()
		CacheMisses.WithLabelValues(m.name).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(m.name).Inc()
	return entry, true
}

// Set implements Store.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl == DefaultExpiration {
		ttl = m.defaultTTL
	}
	entry := newEntry(value, m.now(), ttl)

	m.mu.Lock()
	m.entries[key] = entry
	size := len(m.entries)
	m.mu.Unlock()

	CacheSets.WithLabelValues(m.name).Inc()
	CacheEntries.WithLabelValues(m.name).Set(float64(size))
}

// Delete implements Store.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	size := len(m.entries)
	m.mu.Unlock()

	CacheEntries.WithLabelValues(m.name).Set(float64(size))
}

// DeletePrefix implements Store.
func (m *Memory) DeletePrefix(prefix string) int {
	m.mu.Lock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	size := len(m.entries)
	m.mu.Unlock()

	CacheEntries.WithLabelValues(m.name).Set(float64(size))
	return removed
}

// Len implements Store.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
