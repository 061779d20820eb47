package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultSweepThreshold is the map size beyond which MemoryCounter sweeps
// elapsed windows on the next increment.
const DefaultSweepThreshold = 10000

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is the in-process fallback counter. Entries are keyed by
// bucket and window ordinal; stale windows are swept opportunistically
// once the map grows past the threshold, no background timer runs.
type MemoryCounter struct {
	mu             sync.Mutex
	entries        map[string]*memoryEntry
	sweepThreshold int
	now            func() time.Time
}

type MemoryOption func(*MemoryCounter)

func WithSweepThreshold(n int) MemoryOption {
	return func(c *MemoryCounter) { c.sweepThreshold = n }
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCounter) { c.now = now }
}

func NewMemoryCounter(opts ...MemoryOption) *MemoryCounter {
	c := &MemoryCounter{
		entries:        make(map[string]*memoryEntry),
		sweepThreshold: DefaultSweepThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCounter) Incr(_ context.Context, bucket string, window time.Duration) (int64, time.Time, error) {
	now := c.now()
	key := fmt.Sprintf("%s:%d", bucket, windowIndex(now, window))

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > c.sweepThreshold {
		c.sweepLocked(now)
	}

	e, ok := c.entries[key]
	if !ok {
		e = &memoryEntry{resetAt: windowReset(now, window)}
		c.entries[key] = e
	}
	e.count++

	return e.count, e.resetAt, nil
}

// Len reports the live entry count. Test hook.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCounter) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.resetAt.Before(now) {
			delete(c.entries, key)
		}
	}
}
