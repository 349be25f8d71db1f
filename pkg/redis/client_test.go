package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeCmdable struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestIncrWithTTLSetsExpiryOnFirstIncrementOnly(t *testing.T) {
	fake := newFakeCmdable()
	client := &Client{store: fake}

	count, err := client.IncrWithTTL(t.Context(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, time.Minute, fake.expires["k"])

	delete(fake.expires, "k")
	count, err = client.IncrWithTTL(t.Context(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.NotContains(t, fake.expires, "k", "expiry must only be set on the first increment")
}

func TestFixedWindowAllowBlocksPastLimit(t *testing.T) {
	fake := newFakeCmdable()
	client := &Client{store: fake}

	for i := int64(1); i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(t.Context(), "upload:user:abc", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, i, count)
	}

	allowed, count, err := client.FixedWindowAllow(t.Context(), "upload:user:abc", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, int64(3), count)
}

func TestFixedWindowAllowNamespacesKeys(t *testing.T) {
	fake := newFakeCmdable()
	client := &Client{store: fake}

	_, _, err := client.FixedWindowAllow(t.Context(), "upload:user:abc", 1, time.Minute)
	require.NoError(t, err)
	require.Contains(t, fake.counts, "df:rate_limit:upload:user:abc")
}

func TestFixedWindowAllowPropagatesStoreErrors(t *testing.T) {
	fake := newFakeCmdable()
	fake.incrErr = fmt.Errorf("connection refused")
	client := &Client{store: fake}

	_, _, err := client.FixedWindowAllow(t.Context(), "upload:user:abc", 1, time.Minute)
	require.Error(t, err)
}
