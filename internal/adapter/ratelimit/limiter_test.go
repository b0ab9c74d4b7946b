package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newMemory(func() time.Time { return now })
	defer rl.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, i, d.Count)
	}
	d := rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining(3))
	require.Equal(t, now.Add(time.Minute), d.WindowEnd)

	// Other keys are counted separately.
	require.True(t, rl.Allow(ctx, "ip:5.6.7.8", 3, time.Minute).Allowed)

	now = now.Add(time.Minute)
	d = rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.True(t, d.Allowed, "window must reset")
	require.Equal(t, 1, d.Count)
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	rl := NewMemory()
	defer rl.Close()

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow(context.Background(), "k", 0, time.Minute).Allowed)
	}
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newMemory(func() time.Time { return now })
	defer rl.Close()

	rl.Allow(context.Background(), "a", 1, time.Second)
	rl.cleanup(now.Add(2 * time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	require.Empty(t, rl.entries)
}

func TestNewRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(context.Background(), "127.0.0.1:1", "", 0, zerolog.Nop())
	require.Error(t, err)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, Limiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rl, err := NewRedis(context.Background(), mr.Addr(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(rl.Close)
	return mr, rl
}

func TestRedisLimiter(t *testing.T) {
	mr, rl := newTestRedis(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		d := rl.Allow(ctx, "ip:1.2.3.4", 2, time.Second)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, i, d.Count)
	}
	d := rl.Allow(ctx, "ip:1.2.3.4", 2, time.Second)
	require.False(t, d.Allowed)
	require.Equal(t, 3, d.Count)
	require.Equal(t, time.Second, mr.TTL("trimfit:ratelimit:ip:1.2.3.4"))

	require.True(t, rl.Allow(ctx, "ip:5.6.7.8", 2, time.Second).Allowed)

	mr.FastForward(2 * time.Second)
	d = rl.Allow(ctx, "ip:1.2.3.4", 2, time.Second)
	require.True(t, d.Allowed, "window must reset")
	require.Equal(t, 1, d.Count)
}

func TestRedisLimiter_RearmsMissingTTL(t *testing.T) {
	mr, rl := newTestRedis(t)
	ctx := context.Background()

	// A counter whose EXPIRE never landed.
	_, err := mr.Incr("trimfit:ratelimit:ip:1.2.3.4", 5)
	require.NoError(t, err)
	require.Zero(t, mr.TTL("trimfit:ratelimit:ip:1.2.3.4"))

	require.False(t, rl.Allow(ctx, "ip:1.2.3.4", 2, time.Second).Allowed)
	require.Equal(t, time.Second, mr.TTL("trimfit:ratelimit:ip:1.2.3.4"))

	mr.FastForward(2 * time.Second)
	d := rl.Allow(ctx, "ip:1.2.3.4", 2, time.Second)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Count)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr, rl := newTestRedis(t)
	mr.Close()

	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow(context.Background(), "ip:1.2.3.4", 1, time.Minute).Allowed)
	}
}
