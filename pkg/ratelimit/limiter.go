// Package ratelimit implements a fixed-window request limiter with two
// interchangeable counter backends: a shared Redis counter for
// multi-process deployments and a local in-process fallback. Both expose
// identical semantics to callers; the limiter picks a backend per call so
// transient backend failures self-heal without a sticky mode.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Counter atomically increments the request count for a bucket in the
// current fixed window and reports when that window resets. Counting is
// approximate under races: benign inflation is tolerated, undercounting
// is not.
type Counter interface {
	Incr(ctx context.Context, bucket string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Result is the outcome of a limit check. The metadata fields are set on
// every call, allowed or not, so callers can surface them unconditionally.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, minimum 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

type Option func(*Limiter)

// WithSharedBackend installs a shared counter consulted while healthy
// reports true. Without one the limiter runs purely in-process.
func WithSharedBackend(c Counter, healthy func() bool) Option {
	return func(l *Limiter) {
		l.shared = c
		l.healthy = healthy
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter answers "may this caller proceed" using fixed-window counting.
type Limiter struct {
	local   Counter
	shared  Counter
	healthy func() bool
	log     *slog.Logger
	now     func() time.Time
}

// New builds a Limiter over the given local counter. A nil counter gets a
// default in-memory one.
func New(local Counter, opts ...Option) *Limiter {
	if local == nil {
		local = NewMemoryCounter()
	}
	l := &Limiter{
		local: local,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check increments the counter for bucket and decides against max. The
// shared backend is preferred when its health predicate passes; an error
// from it falls back to the local counter for this call only. If both
// backends fail the limiter fails open and allows the request.
func (l *Limiter) Check(ctx context.Context, bucket string, window time.Duration, max int) Result {
	if l.shared != nil && (l.healthy == nil || l.healthy()) {
		count, resetAt, err := l.shared.Incr(ctx, bucket, window)
		if err == nil {
			return l.result(count, resetAt, max)
		}
		l.log.Warn("shared rate limit backend failed, using local counter",
			"bucket", bucket, "err", err)
	}

	count, resetAt, err := l.local.Incr(ctx, bucket, window)
	if err != nil {
		// Both backends down. Denying here would turn a limiter outage
		// into a full outage, so allow.
		l.log.Error("rate limit counters unavailable, failing open",
			"bucket", bucket, "err", err)
		return Result{
			Allowed:   true,
			Limit:     max,
			Remaining: max - 1,
			ResetAt:   l.now().Add(window),
		}
	}
	return l.result(count, resetAt, max)
}

func (l *Limiter) result(count int64, resetAt time.Time, max int) Result {
	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(max),
		Limit:     max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// windowIndex maps an instant onto its fixed window ordinal so a fresh
// index implicitly resets the count.
func windowIndex(now time.Time, window time.Duration) int64 {
	return now.UnixMilli() / window.Milliseconds()
}

// windowReset returns the instant the window containing now rolls over.
func windowReset(now time.Time, window time.Duration) time.Time {
	idx := windowIndex(now, window)
	return time.UnixMilli((idx + 1) * window.Milliseconds())
}
