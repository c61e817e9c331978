package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key (usually a client IP)
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration // idle buckets older than this are dropped
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// Option configures a RateLimiter
type Option func(*RateLimiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter creates a keyed limiter allowing perSecond sustained requests
// with bursts up to burst. When ttl > 0 a janitor goroutine evicts idle keys
// until Close is called.
func NewRateLimiter(perSecond float64, burst int, ttl time.Duration, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	if ttl > 0 {
		go rl.janitor()
	}
	return rl
}

func (rl *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.buckets[key] = &bucket{limiter: l, lastSeen: now}
	return l
}

// Allow consumes one token for key and reports whether the request may proceed
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Take(key)
	return ok
}

// Take consumes one token for key. When the bucket is empty it returns false
// and how long the caller should wait before retrying.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	now := rl.now()
	l := rl.get(key, now)

	res := l.ReserveN(now, 1)
	if !res.OK() {
		return false, rl.window()
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Tokens returns the tokens currently available for key
func (rl *RateLimiter) Tokens(key string) float64 {
	now := rl.now()
	return rl.get(key, now).TokensAt(now)
}

// Reset gives key a fresh, full bucket
func (rl *RateLimiter) Reset(key string) {
	rl.Remove(key)
}

// Remove forgets key
func (rl *RateLimiter) Remove(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Close stops the janitor. The limiter stays usable.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// window is the time a full bucket takes to refill
func (rl *RateLimiter) window() time.Duration {
	if rl.limit <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(rl.burst)/float64(rl.limit))) * time.Second
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	evicted := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.ttl {
			delete(rl.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Stats returns statistics about the rate limiter
type Stats struct {
	ActiveBuckets int
	Burst         int
	PerSecond     float64
}

// GetStats returns current statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		ActiveBuckets: len(rl.buckets),
		Burst:         rl.burst,
		PerSecond:     float64(rl.limit),
	}
}
