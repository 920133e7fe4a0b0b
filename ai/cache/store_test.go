package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, store.Set(ctx, "forever", "v", 0))

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)

	_, err = store.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

// fakeRedis implements redisAPI over a map.
type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	closed bool
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	store := &RedisStore{rdb: fake}
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", "POSITIVE", time.Hour))
	assert.Equal(t, time.Hour, fake.ttls["k"])

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "POSITIVE", v)

	fake.getErr = errors.New("connection reset")
	_, err = store.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Close())
	assert.True(t, fake.closed)
}
