// Package cache is the best-effort session accelerator over Redis. The
// durable store stays the source of truth: every operation here degrades
// gracefully, a miss or a dead backend never fails the surrounding
// request. Deny-list lookups follow the same rule, a cache-down blacklist
// check means "not revoked by this check" and nothing more.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/pkg/cryptox"
)

// State is the connection lifecycle of the cache backend.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const (
	DefaultOpTimeout   = 500 * time.Millisecond
	DefaultSessionTTL  = 30 * time.Minute
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	defaultMaxAttempts = 10
)

type Option func(*Cache)

func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

func WithBackoff(base, max time.Duration, maxAttempts int) Option {
	return func(c *Cache) {
		c.baseBackoff = base
		c.maxBackoff = max
		c.maxAttempts = maxAttempts
	}
}

// Cache wraps a Redis client with a small connection state machine.
// After maxAttempts failed reconnects it stops retrying and runs in
// permanent bypass mode until process restart.
type Cache struct {
	rdb       redis.UniversalClient
	log       *slog.Logger
	opTimeout time.Duration

	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxAttempts int

	mu           sync.Mutex
	state        State
	degraded     bool
	reconnecting bool
}

func New(rdb redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		rdb:         rdb,
		log:         slog.Default(),
		opTimeout:   DefaultOpTimeout,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		maxAttempts: defaultMaxAttempts,
		state:       StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect probes the backend once. On failure the reconnect loop takes
// over in the background; the caller proceeds regardless since the cache
// is never required for correctness.
func (c *Cache) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	if err := c.Ping(ctx); err != nil {
		c.log.Warn("session cache unavailable at startup", "err", err)
		c.markFailure()
		return err
	}

	c.setState(StateReady)
	c.log.Info("session cache connected")
	return nil
}

// Ping checks backend liveness regardless of current state.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// State reports the current connection state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Healthy reports whether operations currently reach the backend.
func (c *Cache) Healthy() bool {
	return c.State() == StateReady
}

// Put stores session metadata. A non-positive ttl falls back to
// DefaultSessionTTL so entries never outlive their usefulness. Returns
// false when the write did not happen; callers must not treat that as
// an error.
func (c *Cache) Put(ctx context.Context, s domain.Session, ttl time.Duration) bool {
	if !c.Healthy() {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, sessionKey(s.ID), payload, ttl).Err(); err != nil {
		c.opFailed("put", err)
		return false
	}
	return true
}

// Get returns the cached session, if present. Absence never implies the
// session is gone, the caller falls back to the durable store.
func (c *Cache) Get(ctx context.Context, sessionID string) (domain.Session, bool) {
	if !c.Healthy() {
		return domain.Session{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.opFailed("get", err)
		}
		return domain.Session{}, false
	}

	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Session{}, false
	}
	return s, true
}

// Delete drops a cached session.
func (c *Cache) Delete(ctx context.Context, sessionID string) bool {
	if !c.Healthy() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		c.opFailed("delete", err)
		return false
	}
	return true
}

// BlacklistToken deny-lists a presented access token until it would have
// expired anyway. Best effort: the refresh store remains the authority
// for anything security-critical.
func (c *Cache) BlacklistToken(ctx context.Context, raw string, ttl time.Duration) bool {
	if !c.Healthy() || ttl <= 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, blacklistKey(raw), "1", ttl).Err(); err != nil {
		c.opFailed("blacklist", err)
		return false
	}
	return true
}

// IsTokenRevoked reports whether the token is on the deny-list. A miss
// or a dead backend means "not revoked by this check" only.
func (c *Cache) IsTokenRevoked(ctx context.Context, raw string) bool {
	if !c.Healthy() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	n, err := c.rdb.Exists(ctx, blacklistKey(raw)).Result()
	if err != nil {
		c.opFailed("blacklist lookup", err)
		return false
	}
	return n > 0
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func sessionKey(id string) string {
	return "session:" + id
}

func blacklistKey(raw string) string {
	return "blacklist:" + cryptox.FingerprintToken(raw)
}

func (c *Cache) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.log.Info("session cache state change", "from", prev.String(), "to", s.String())
	}
}

func (c *Cache) opFailed(op string, err error) {
	c.log.Warn("session cache operation failed", "op", op, "err", err)
	c.markFailure()
}

// markFailure flips the state machine to reconnecting and starts the
// single background reconnect loop. Once degraded, nothing restarts it.
func (c *Cache) markFailure() {
	c.mu.Lock()
	if c.degraded || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.state = StateReconnecting
	c.mu.Unlock()

	go c.reconnectLoop()
}

func (c *Cache) reconnectLoop() {
	backoff := c.baseBackoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		time.Sleep(backoff)
		if backoff *= 2; backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}

		if err := c.Ping(context.Background()); err != nil {
			c.log.Warn("session cache reconnect failed",
				"attempt", attempt, "max_attempts", c.maxAttempts, "err", err)
			continue
		}

		c.mu.Lock()
		c.reconnecting = false
		c.state = StateReady
		c.mu.Unlock()
		c.log.Info("session cache reconnected", "attempts", attempt)
		return
	}

	// Out of attempts: bypass mode until process restart.
	c.mu.Lock()
	c.reconnecting = false
	c.degraded = true
	c.state = StateDisconnected
	c.mu.Unlock()
	c.log.Error("session cache gave up reconnecting, running degraded",
		"max_attempts", c.maxAttempts)
}
