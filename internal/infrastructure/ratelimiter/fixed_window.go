package ratelimiter

import (
	"sync"
	"time"
)

// Limiter gates handshakes per source key.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// FixedWindowRateLimiter admits at most limit handshakes per key in each window.
type FixedWindowRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	size    time.Duration
	now     func() time.Time

	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type window struct {
	count   int
	resetAt time.Time
}

func NewFixedWindowRateLimiter(limit int, size time.Duration) *FixedWindowRateLimiter {
	if size <= 0 {
		size = time.Minute
	}

	rl := &FixedWindowRateLimiter{
		windows:     make(map[string]*window),
		limit:       limit,
		size:        size,
		now:         time.Now,
		cleanupTick: time.NewTicker(size),
		done:        make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether key may proceed and, if not, how long until its window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Truncate(rl.size).Add(rl.size)}
		return true, 0
	}

	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}

	w.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
