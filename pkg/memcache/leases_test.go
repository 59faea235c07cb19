package mem

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLeases(t *testing.T) (*RedisLeases, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLeases(client, "test:"), mr
}

func TestLeaseStoresAreExclusive(t *testing.T) {
	redisLeases, _ := newRedisLeases(t)
	stores := map[string]LeaseStore{
		"memory": NewMemoryLeases(),
		"redis":  redisLeases,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			token, ok, err := store.Acquire(ctx, "stream:1", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotEmpty(t, token)

			_, ok, err = store.Acquire(ctx, "stream:1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "second acquire must fail while held")

			_, ok, err = store.Acquire(ctx, "stream:2", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "other keys are independent")

			require.NoError(t, store.Release(ctx, "stream:1", "not-the-token"))
			_, ok, _ = store.Acquire(ctx, "stream:1", time.Minute)
			assert.False(t, ok, "release with a foreign token is a no-op")

			require.NoError(t, store.Release(ctx, "stream:1", token))
			_, ok, err = store.Acquire(ctx, "stream:1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemoryLeasesExpire(t *testing.T) {
	store := NewMemoryLeases()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, ok, _ := store.Acquire(context.Background(), "billing:2025-01-01", time.Minute)
	require.True(t, ok)

	now = now.Add(59 * time.Second)
	_, ok, _ = store.Acquire(context.Background(), "billing:2025-01-01", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = store.Acquire(context.Background(), "billing:2025-01-01", time.Minute)
	assert.True(t, ok)
}

func TestRedisLeasesExpire(t *testing.T) {
	store, mr := newRedisLeases(t)
	ctx := context.Background()

	_, ok, err := store.Acquire(ctx, "billing:2025-01-01", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:billing:2025-01-01"))

	mr.FastForward(2 * time.Minute)

	_, ok, err = store.Acquire(ctx, "billing:2025-01-01", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLeasesSingleWinnerUnderContention(t *testing.T) {
	store := NewMemoryLeases()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Acquire(context.Background(), "stream:x", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRedisLeaseKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	for _, prefix := range []string{"app", "app:", "app::"} {
		mr.FlushAll()
		_, ok, err := NewRedisLeases(client, prefix).Acquire(ctx, "stream:42", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"app:stream:42"}, mr.Keys(), prefix)
	}
}
