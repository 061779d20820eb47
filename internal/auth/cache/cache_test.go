package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/paysignal/console-auth/internal/auth/cache"
	"github.com/paysignal/console-auth/internal/auth/domain"
)

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(rdb, cache.WithBackoff(time.Millisecond, 5*time.Millisecond, 3))
	require.NoError(t, c.Connect(context.Background()))
	return c, mr
}

func TestSessionRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	s := domain.Session{
		ID:             "01SESS",
		UserID:         "01USER",
		RefreshTokenID: "01RT",
		IP:             "1.2.3.4",
		UserAgent:      "console",
		CreatedAt:      time.Now().Truncate(time.Second),
		LastActiveAt:   time.Now().Truncate(time.Second),
	}

	require.True(t, c.Put(ctx, s, time.Minute))

	got, ok := c.Get(ctx, "01SESS")
	require.True(t, ok)
	require.Equal(t, s.UserID, got.UserID)
	require.Equal(t, s.RefreshTokenID, got.RefreshTokenID)

	require.True(t, c.Delete(ctx, "01SESS"))
	_, ok = c.Get(ctx, "01SESS")
	require.False(t, ok)
}

func TestPutFloorsTTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.True(t, c.Put(ctx, domain.Session{ID: "01SESS"}, 0))
	require.Equal(t, cache.DefaultSessionTTL, mr.TTL("session:01SESS"))

	require.True(t, c.Put(ctx, domain.Session{ID: "02SESS"}, time.Minute))
	require.Equal(t, time.Minute, mr.TTL("session:02SESS"))
}

func TestGetMissIsAbsentNotError(t *testing.T) {
	c, _ := newCache(t)

	_, ok := c.Get(context.Background(), "nope")
	require.False(t, ok)
	require.True(t, c.Healthy(), "a plain miss must not trip the state machine")
}

func TestBlacklist(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.False(t, c.IsTokenRevoked(ctx, "token-a"))

	require.True(t, c.BlacklistToken(ctx, "token-a", time.Minute))
	require.True(t, c.IsTokenRevoked(ctx, "token-a"))
	require.False(t, c.IsTokenRevoked(ctx, "token-b"))

	// Entries expire with the token they shadow.
	mr.FastForward(2 * time.Minute)
	require.False(t, c.IsTokenRevoked(ctx, "token-a"))
}

func TestBlacklistRejectsNonPositiveTTL(t *testing.T) {
	c, _ := newCache(t)
	require.False(t, c.BlacklistToken(context.Background(), "token-a", 0))
}

func TestDegradesWhenBackendDies(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	mr.Close()

	// First failing op trips the state machine; everything afterwards is
	// a fast bypass, never an error.
	require.False(t, c.Put(ctx, domain.Session{ID: "01SESS"}, time.Minute))
	_, ok := c.Get(ctx, "01SESS")
	require.False(t, ok)
	require.False(t, c.IsTokenRevoked(ctx, "token-a"))
	require.False(t, c.Healthy())

	// Reconnect attempts are capped, then the cache reports unhealthy
	// permanently.
	require.Eventually(t, func() bool {
		return c.State() == cache.StateDisconnected
	}, time.Second, 5*time.Millisecond)
}

func TestReconnects(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(rdb, cache.WithBackoff(time.Millisecond, 5*time.Millisecond, 50))
	require.NoError(t, c.Connect(context.Background()))

	// Kill and restart the backend on the same address; the loop should
	// find it again well within the attempt budget.
	addr := mr.Addr()
	mr.Close()
	require.False(t, c.Put(context.Background(), domain.Session{ID: "01SESS"}, time.Minute))

	mr2 := miniredis.NewMiniRedis()
	require.NoError(t, mr2.StartAddr(addr))
	defer mr2.Close()

	require.Eventually(t, c.Healthy, 2*time.Second, 5*time.Millisecond)
	require.True(t, c.Put(context.Background(), domain.Session{ID: "01SESS"}, time.Minute))
}

func TestConnectFailureIsNonFatal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c := cache.New(rdb, cache.WithBackoff(time.Millisecond, 2*time.Millisecond, 1))

	require.Error(t, c.Connect(context.Background()))
	require.False(t, c.Healthy())

	// Operations on a dead cache are silent no-ops.
	require.False(t, c.Put(context.Background(), domain.Session{ID: "01SESS"}, time.Minute))
	_, ok := c.Get(context.Background(), "01SESS")
	require.False(t, ok)
}
