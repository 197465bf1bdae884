package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an untouched bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen atomic.Int64 // unix nanos of the last use
}

// Limiter keeps one token bucket per key (remote address, upstream host,
// stream symbol). All buckets share the same rate and burst. Buckets idle
// for longer than the idle TTL are dropped once they have refilled.
type Limiter struct {
	mu        sync.RWMutex
	limiters  map[string]*bucket
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithIdleTTL sets how long an unused key survives. d <= 0 keeps keys forever.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) { l.idle = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a keyed limiter. rps <= 0 disables limiting.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	l := &Limiter{
		limiters: make(map[string]*bucket),
		rps:      lim,
		burst:    burst,
		idle:     DefaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// PerMinute builds a limiter from a requests-per-minute budget.
func PerMinute(n int, opts ...Option) *Limiter {
	if n <= 0 {
		return New(0, 1, opts...)
	}
	return New(float64(n)/60.0, n, opts...)
}

func (l *Limiter) get(key string) *rate.Limiter {
	now := l.now()
	l.mu.RLock()
	b, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		b.seen.Store(now.UnixNano())
		return b.lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.limiters[key]; ok {
		b.seen.Store(now.UnixNano())
		return b.lim
	}
	// new keys pay for the sweep; hits stay on the read lock
	if l.idle > 0 && now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}
	b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
	b.seen.Store(now.UnixNano())
	l.limiters[key] = b
	return b.lim
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Wait blocks until key has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

// Sweep drops idle buckets now and returns how many were removed.
func (l *Limiter) Sweep() int {
	if l.idle <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) int {
	l.lastSweep = now
	cutoff := now.Add(-l.idle).UnixNano()
	removed := 0
	for k, b := range l.limiters {
		if b.seen.Load() > cutoff {
			continue
		}
		// a drained bucket would reset on re-entry, so it stays until full
		if b.lim.TokensAt(now) < float64(l.burst) {
			continue
		}
		delete(l.limiters, k)
		removed++
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}
