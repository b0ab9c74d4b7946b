// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Limiter decides whether another request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
	Close()
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

// Remaining returns how many requests are left in the window.
func (d Decision) Remaining(limit int) int {
	if r := limit - d.Count; r > 0 {
		return r
	}
	return 0
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]state
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type state struct {
	count     int
	windowEnd time.Time
}

// NewMemory returns a process-local Limiter.
func NewMemory() Limiter {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memoryLimiter {
	rl := &memoryLimiter{
		entries: make(map[string]state),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.entries[key]
	if !ok || !now.Before(st.windowEnd) {
		st = state{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = st
		return Decision{Allowed: true, Count: st.count, WindowEnd: st.windowEnd}
	}
	if st.count >= limit {
		return Decision{Allowed: false, Count: st.count, WindowEnd: st.windowEnd}
	}
	st.count++
	rl.entries[key] = st
	return Decision{Allowed: true, Count: st.count, WindowEnd: st.windowEnd}
}

func (rl *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, st := range rl.entries {
		if !now.Before(st.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}
