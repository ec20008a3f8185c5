package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds token bucket parameters for one source.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity and the initial token count.
	BurstSize int
}

// DefaultRateLimit applies when a source is registered without valid limits.
var DefaultRateLimit = RateLimitConfig{RequestsPerSecond: 2, BurstSize: 5}

func (c RateLimitConfig) orDefault() RateLimitConfig {
	if c.RequestsPerSecond <= 0 || c.BurstSize <= 0 {
		return DefaultRateLimit
	}
	return c
}

// RateLimiter keeps one continuous token bucket per source name.
// Allow never blocks; a denied call is a soft skip for the caller.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*sourceBucket
	now     func() time.Time
}

type sourceBucket struct {
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

var (
	sharedLimiterOnce sync.Once
	sharedLimiter     *RateLimiter
)

// SharedRateLimiter returns the process-wide limiter.
// Research runs built from the same process share its buckets.
func SharedRateLimiter() *RateLimiter {
	sharedLimiterOnce.Do(func() {
		sharedLimiter = NewRateLimiter()
	})
	return sharedLimiter
}

// NewRateLimiter creates an empty limiter using the wall clock.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithClock(time.Now)
}

// NewRateLimiterWithClock creates a limiter that reads time from now.
func NewRateLimiterWithClock(now func() time.Time) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*sourceBucket),
		now:     now,
	}
}

// Allow takes one token from the named source's bucket if one is available.
// The bucket is created full on first use. Passing different limits for an
// existing source retunes its bucket in place.
func (r *RateLimiter) Allow(source string, cfg RateLimitConfig) bool {
	cfg = cfg.orDefault()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[source]
	if !ok {
		b = &sourceBucket{
			limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
			cfg:     cfg,
		}
		r.buckets[source] = b
	} else if b.cfg != cfg {
		b.limiter.SetLimitAt(now, rate.Limit(cfg.RequestsPerSecond))
		b.limiter.SetBurstAt(now, cfg.BurstSize)
		b.cfg = cfg
	}

	return b.limiter.AllowN(now, 1)
}
