// Package cache provides the metadata cache used to avoid redundant source
// fetches. The core contract is the partial batch lookup: BatchGet splits the
// requested keys into hits and misses so callers fetch only what is missing.
package cache

import (
	"context"
	"time"
)

// Cache is the metadata cache contract. Implementations must be safe for
// concurrent use and must make per-key operations atomic; a lost race between
// two writers of the same key degrades to a redundant fetch, never to a
// correctness violation.
type Cache interface {
	// Get returns the value for key, or domain.ErrNotFound (wrapped) on a
	// miss. An expired entry is a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// BatchGet looks up all keys and returns the hits as a map plus the list
	// of missing keys in request order. An expired entry counts as a miss.
	BatchGet(ctx context.Context, keys []string) (hits map[string][]byte, misses []string, err error)

	// Set stores value under key with the given TTL, replacing any existing
	// entry. A non-positive TTL stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error
}

// Entry is a cached value with its insertion time and time-to-live.
type Entry struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
	TTL        time.Duration
}

// Live reports whether the entry is still valid at the given instant.
// An entry is live iff now - InsertedAt < TTL.
func (e Entry) Live(now time.Time) bool {
	return now.Sub(e.InsertedAt) < e.TTL
}
