package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStoreCountsAndResets(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	w, err := store.Hit(ctx, "10.0.0.1:/auth/access-token", epoch, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
	assert.True(t, w.Start.Equal(epoch))

	w, err = store.Hit(ctx, "10.0.0.1:/auth/access-token", epoch.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Count)

	w, err = store.Hit(ctx, "10.0.0.1:/auth/access-token", epoch.Add(time.Minute+time.Millisecond), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
	assert.True(t, w.Start.Equal(epoch.Add(time.Minute+time.Millisecond)))
}

func TestRedisStoreUsesPrefixAndExpiry(t *testing.T) {
	store, mr := newRedisStore(t)

	_, err := store.Hit(context.Background(), "k", epoch, time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists(defaultKeyPrefix+"k"))
	assert.Equal(t, 2*time.Minute, mr.TTL(defaultKeyPrefix+"k"))

	mr.FastForward(2*time.Minute + time.Second)
	assert.False(t, mr.Exists(defaultKeyPrefix+"k"))
}

func TestRedisStoreReportsOutage(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Hit(context.Background(), "k", epoch, time.Minute)
	assert.Error(t, err)
}
