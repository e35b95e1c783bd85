package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/helixir/publication-aggregator/internal/domain"
)

func newRedisForTest(c rueidis.Client) *Redis {
	return &Redis{client: c}
}

func TestRedis_Ping(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG")))

		r := newRedisForTest(c)
		require.NoError(t, r.Ping(context.Background()))
	})

	t.Run("error wraps cache backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		r := newRedisForTest(c)
		err := r.Ping(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCacheBackend)
	})
}

func TestRedis_Get(t *testing.T) {
	t.Run("hit returns value", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "pub:pubmed:1000")).
			Return(mock.Result(mock.RedisBlobString(`{"pmid":"1000"}`)))

		r := newRedisForTest(c)
		got, err := r.Get(context.Background(), "pub:pubmed:1000")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"pmid":"1000"}`), got)
	})

	t.Run("nil reply is a miss", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "pub:pubmed:9999")).
			Return(mock.Result(mock.RedisNil()))

		r := newRedisForTest(c)
		_, err := r.Get(context.Background(), "pub:pubmed:9999")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrCacheBackend)
	})

	t.Run("backend error is not a miss", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "k")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		r := newRedisForTest(c)
		_, err := r.Get(context.Background(), "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCacheBackend)
		assert.NotErrorIs(t, err, domain.ErrNotFound)

		var backendErr *domain.CacheBackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, "get", backendErr.Op)
	})
}

func TestRedis_BatchGet(t *testing.T) {
	t.Run("single MGET splits hits and misses", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("MGET", "k1", "k2", "k3")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisBlobString("v1"),
				mock.RedisNil(),
				mock.RedisBlobString("v3"),
			)))

		r := newRedisForTest(c)
		hits, misses, err := r.BatchGet(context.Background(), []string{"k1", "k2", "k3"})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			"k1": []byte("v1"),
			"k3": []byte("v3"),
		}, hits)
		assert.Equal(t, []string{"k2"}, misses)
	})

	t.Run("no keys skips the round trip", func(t *testing.T) {
		r := newRedisForTest(nil) // client not called
		hits, misses, err := r.BatchGet(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
		assert.Empty(t, misses)
	})

	t.Run("value count mismatch is a backend error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("MGET", "k1", "k2")).
			Return(mock.Result(mock.RedisArray(mock.RedisBlobString("v1"))))

		r := newRedisForTest(c)
		_, _, err := r.BatchGet(context.Background(), []string{"k1", "k2"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCacheBackend)
		assert.Contains(t, err.Error(), "expected 2 values, got 1")
	})

	t.Run("command error wraps cache backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("MGET", "k1")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		r := newRedisForTest(c)
		_, _, err := r.BatchGet(context.Background(), []string{"k1"})
		require.Error(t, err)

		var backendErr *domain.CacheBackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, "batch_get", backendErr.Op)
	})
}

func TestRedis_Set(t *testing.T) {
	t.Run("stores with EX expiry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
			Return(mock.Result(mock.RedisString("OK")))

		r := newRedisForTest(c)
		require.NoError(t, r.Set(context.Background(), "k", []byte("v"), time.Minute))
	})

	t.Run("non-positive TTL is a no-op", func(t *testing.T) {
		r := newRedisForTest(nil) // client not called
		require.NoError(t, r.Set(context.Background(), "k", []byte("v"), 0))
		require.NoError(t, r.Set(context.Background(), "k", []byte("v"), -time.Second))
	})

	t.Run("error wraps cache backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "SET" && cmd[1] == "k"
			})).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		r := newRedisForTest(c)
		err := r.Set(context.Background(), "k", []byte("v"), time.Minute)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCacheBackend)
	})
}

func TestRedis_Invalidate(t *testing.T) {
	t.Run("deletes the key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("DEL", "k")).
			Return(mock.Result(mock.RedisInt64(1)))

		r := newRedisForTest(c)
		require.NoError(t, r.Invalidate(context.Background(), "k"))
	})

	t.Run("error wraps cache backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("DEL", "k")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		r := newRedisForTest(c)
		err := r.Invalidate(context.Background(), "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCacheBackend)
	})
}
