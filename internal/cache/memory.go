package cache

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/publication-aggregator/internal/domain"
)

// Memory is an in-process Cache backed by a map with per-key TTLs.
//
// Eviction is lazy: an expired entry is treated as a miss at read time and
// removed then. An optional background sweep (StartSweeper) reclaims memory
// for keys that are never read again; it is not required for correctness.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// now is swappable for tests.
	now func() time.Time
}

// Compile-time check that Memory implements Cache.
var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the value for key, or a wrapped domain.ErrNotFound on a miss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && entry.Live(now) {
		return entry.Value, nil
	}

	if ok {
		// Expired: remove under the write lock, re-checking that the entry
		// was not replaced between the two lock acquisitions.
		m.mu.Lock()
		if cur, still := m.entries[key]; still && !cur.Live(now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}

	return nil, domain.NewNotFoundError("cache entry", key)
}

// BatchGet looks up all keys, returning hits and the missing keys in request
// order. Expired entries count as misses and are removed.
func (m *Memory) BatchGet(_ context.Context, keys []string) (map[string][]byte, []string, error) {
	now := m.now()
	hits := make(map[string][]byte, len(keys))
	var misses []string
	var expired []string

	m.mu.RLock()
	for _, key := range keys {
		entry, ok := m.entries[key]
		switch {
		case ok && entry.Live(now):
			hits[key] = entry.Value
		case ok:
			expired = append(expired, key)
			misses = append(misses, key)
		default:
			misses = append(misses, key)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.mu.Lock()
		for _, key := range expired {
			if cur, still := m.entries[key]; still && !cur.Live(now) {
				delete(m.entries, key)
			}
		}
		m.mu.Unlock()
	}

	return hits, misses, nil
}

// Set stores value under key with the given TTL. A non-positive TTL is a no-op.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	m.entries[key] = Entry{
		Key:        key,
		Value:      value,
		InsertedAt: m.now(),
		TTL:        ttl,
	}
	m.mu.Unlock()
	return nil
}

// Invalidate removes key. Removing an absent key is not an error.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries currently held, including entries that
// have expired but not yet been evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// StartSweeper launches a background goroutine that removes expired entries
// every interval until ctx is canceled.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// sweep removes all expired entries.
func (m *Memory) sweep() {
	now := m.now()

	m.mu.Lock()
	for key, entry := range m.entries {
		if !entry.Live(now) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}
