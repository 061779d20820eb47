package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/paysignal/console-auth/pkg/ratelimit"
)

type errCounter struct{}

func (errCounter) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("backend down")
}

func TestMemoryCounter(t *testing.T) {
	t.Parallel()

	t.Run("counts within a window", func(t *testing.T) {
		t.Parallel()
		c := ratelimit.NewMemoryCounter()

		for want := int64(1); want <= 3; want++ {
			count, resetAt, err := c.Incr(context.Background(), "login:1.2.3.4", time.Minute)
			require.NoError(t, err)
			require.Equal(t, want, count)
			require.True(t, resetAt.After(time.Now()))
		}
	})

	t.Run("fresh window resets the count", func(t *testing.T) {
		t.Parallel()
		now := time.Unix(1000, 0)
		c := ratelimit.NewMemoryCounter(ratelimit.WithMemoryClock(func() time.Time { return now }))

		count, _, err := c.Incr(context.Background(), "bucket", time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)

		count, _, err = c.Incr(context.Background(), "bucket", time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(2), count)

		now = now.Add(time.Minute)
		count, _, err = c.Incr(context.Background(), "bucket", time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})

	t.Run("sweeps elapsed windows past the threshold", func(t *testing.T) {
		t.Parallel()
		now := time.Unix(1000, 0)
		c := ratelimit.NewMemoryCounter(
			ratelimit.WithSweepThreshold(5),
			ratelimit.WithMemoryClock(func() time.Time { return now }),
		)

		for _, bucket := range []string{"a", "b", "c", "d", "e", "f"} {
			_, _, err := c.Incr(context.Background(), bucket, time.Minute)
			require.NoError(t, err)
		}
		require.Equal(t, 6, c.Len())

		// All six windows elapse; the next increment triggers the sweep.
		now = now.Add(2 * time.Minute)
		_, _, err := c.Incr(context.Background(), "g", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, c.Len())
	})
}

func TestRedisCounter(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := ratelimit.NewRedisCounter(rdb)

	count, resetAt, err := c.Incr(context.Background(), "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.True(t, resetAt.After(time.Now()))

	count, _, err = c.Incr(context.Background(), "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// Only one key should exist and it must carry a TTL.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Greater(t, mr.TTL(keys[0]), time.Duration(0))

	// Expiry rolls the window over.
	mr.FastForward(2 * time.Minute)
	count, _, err = c.Incr(context.Background(), "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestLimiterCheck(t *testing.T) {
	t.Parallel()

	t.Run("denies the call after max within one window", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())

		for i := 0; i < 3; i++ {
			res := l.Check(context.Background(), "b", time.Minute, 3)
			require.True(t, res.Allowed, "call %d should be allowed", i+1)
			require.Equal(t, 3, res.Limit)
			require.Equal(t, 3-(i+1), res.Remaining)
		}

		res := l.Check(context.Background(), "b", time.Minute, 3)
		require.False(t, res.Allowed)
		require.Equal(t, 0, res.Remaining)
		require.GreaterOrEqual(t, res.RetryAfter(time.Now()), 1)
	})

	t.Run("prefers the shared backend while healthy", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

		l := ratelimit.New(ratelimit.NewMemoryCounter(),
			ratelimit.WithSharedBackend(ratelimit.NewRedisCounter(rdb), func() bool { return true }))

		res := l.Check(context.Background(), "b", time.Minute, 5)
		require.True(t, res.Allowed)
		require.Len(t, mr.Keys(), 1)
	})

	t.Run("shared error falls back to local for that call", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter(),
			ratelimit.WithSharedBackend(errCounter{}, func() bool { return true }))

		res := l.Check(context.Background(), "b", time.Minute, 1)
		require.True(t, res.Allowed)

		res = l.Check(context.Background(), "b", time.Minute, 1)
		require.False(t, res.Allowed, "local counter must have tracked both calls")
	})

	t.Run("unhealthy shared backend is skipped", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

		l := ratelimit.New(ratelimit.NewMemoryCounter(),
			ratelimit.WithSharedBackend(ratelimit.NewRedisCounter(rdb), func() bool { return false }))

		res := l.Check(context.Background(), "b", time.Minute, 5)
		require.True(t, res.Allowed)
		require.Empty(t, mr.Keys())
	})

	t.Run("fails open when every backend errors", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(errCounter{},
			ratelimit.WithSharedBackend(errCounter{}, func() bool { return true }))

		for i := 0; i < 5; i++ {
			res := l.Check(context.Background(), "b", time.Minute, 1)
			require.True(t, res.Allowed)
			require.Equal(t, 1, res.Limit)
			require.False(t, res.ResetAt.IsZero())
		}
	})
}
