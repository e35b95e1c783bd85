package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/helixir/publication-aggregator/internal/domain"
)

// RedisConfig holds connection parameters for a Redis cache backend.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Redis is a Cache backed by Redis via rueidis. Per-key TTLs map directly to
// Redis key expiry, so eviction is handled server-side.
type Redis struct {
	client rueidis.Client
}

// Compile-time check that Redis implements Cache.
var _ Cache = (*Redis)(nil)

// NewRedis creates a Redis cache backend.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Redis{client: client}, nil
}

// Close shuts down the client.
func (r *Redis) Close() {
	r.client.Close()
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return domain.NewCacheBackendError("ping", err)
	}
	return nil
}

// Get returns the value for key, or a wrapped domain.ErrNotFound on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := r.client.B().Get().Key(key).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, domain.NewNotFoundError("cache entry", key)
		}
		return nil, domain.NewCacheBackendError("get", err)
	}
	return data, nil
}

// BatchGet issues a single MGET and splits the keys into hits and misses.
func (r *Redis) BatchGet(ctx context.Context, keys []string) (map[string][]byte, []string, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil, nil
	}

	cmd := r.client.B().Mget().Key(keys...).Build()
	values, err := r.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, nil, domain.NewCacheBackendError("batch_get", err)
	}
	if len(values) != len(keys) {
		return nil, nil, domain.NewCacheBackendError("batch_get",
			fmt.Errorf("expected %d values, got %d", len(keys), len(values)))
	}

	hits := make(map[string][]byte, len(keys))
	var misses []string
	for i, key := range keys {
		data, err := values[i].AsBytes()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				misses = append(misses, key)
				continue
			}
			return nil, nil, domain.NewCacheBackendError("batch_get", err)
		}
		hits[key] = data
	}

	return hits, misses, nil
}

// Set stores value under key with the given TTL via SET EX. A non-positive
// TTL is a no-op.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	cmd := r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return domain.NewCacheBackendError("set", err)
	}
	return nil
}

// Invalidate removes key. Removing an absent key is not an error.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return domain.NewCacheBackendError("invalidate", err)
	}
	return nil
}
