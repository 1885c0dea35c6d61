package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, at time.Time) (*RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRateLimitStore(client)
	store.now = func() time.Time { return at }
	return store, mr
}

var limiterClock = time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)

func TestRateLimitStore_CountsDownThenBlocks(t *testing.T) {
	store, _ := newLimiter(t, limiterClock)
	ctx := context.Background()

	for want := int64(2); want >= 0; want-- {
		res, err := store.Allow(ctx, "qr_redeem:cust-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
	}

	res, err := store.Allow(ctx, "qr_redeem:cust-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, int64(3), res.Limit)
}

func TestRateLimitStore_KeysAreIndependent(t *testing.T) {
	store, _ := newLimiter(t, limiterClock)
	ctx := context.Background()

	_, err := store.Allow(ctx, "eft_initiate:cust-1", 1, time.Minute)
	require.NoError(t, err)

	res, err := store.Allow(ctx, "eft_initiate:cust-2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimitStore_CounterCarriesTTL(t *testing.T) {
	store, mr := newLimiter(t, limiterClock)
	ctx := context.Background()

	_, err := store.Allow(ctx, "webhook:10.0.0.1", 1, time.Minute)
	require.NoError(t, err)

	slot := limiterClock.Unix() / 60
	key := "wle:rl:webhook:10.0.0.1:" + strconv.FormatInt(slot, 10)
	require.True(t, mr.Exists(key))
	assert.Equal(t, 61*time.Second, mr.TTL(key))

	mr.FastForward(62 * time.Second)
	res, err := store.Allow(ctx, "webhook:10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "expired counter starts over")
}

func TestRateLimitStore_NextWindowStartsFresh(t *testing.T) {
	store, _ := newLimiter(t, limiterClock)
	ctx := context.Background()

	_, err := store.Allow(ctx, "api:cust-4", 1, time.Minute)
	require.NoError(t, err)

	store.now = func() time.Time { return limiterClock.Add(time.Minute) }
	res, err := store.Allow(ctx, "api:cust-4", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimitStore_ResetAtIsWindowEnd(t *testing.T) {
	store, _ := newLimiter(t, limiterClock)

	res, err := store.Allow(context.Background(), "api:cust-5", 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC).Unix(), res.ResetAt)
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	store, mr := newLimiter(t, limiterClock)
	mr.Close()

	_, err := store.Allow(context.Background(), "api:cust-6", 1, time.Minute)
	assert.Error(t, err)
}
