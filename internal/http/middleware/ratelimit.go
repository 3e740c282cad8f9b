// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token-bucket limiter. Buckets are keyed
// by user id once Authenticate resolved a caller and by client IP otherwise.
// Idle buckets are swept every sweepEvery lookups. Idempotent replays flagged
// by IdempotencyValidator are never limited.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	bucketIdleTTL = 10 * time.Minute
	sweepEvery    = 5000
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by "user:<id>" for authenticated callers and by
// "ip:<addr>" for anonymous ones.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id, ok := UserID(c); ok {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per caller. It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
	ttl     time.Duration
	now     func() time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst. rps <= 0 disables limiting and burst <= 0 is treated as 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		rps:     limit,
		burst:   max(burst, 1),
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     bucketIdleTTL,
		now:     time.Now,
	}
}

// limiterFor returns the bucket for key, creating it on first use. Stale
// buckets are swept before the lookup so the requested key can be evicted too.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the limiting middleware. Rejections are 429 with a
// Retry-After of at least one second.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		key := rl.keyFn(c)
		lim := rl.limiterFor(key)
		if lim.Allow() {
			c.Next()
			return
		}

		caller, _, _ := strings.Cut(key, ":")
		rateLimited.WithLabelValues(caller).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(lim)))
		abortJSON(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// retryAfterSeconds estimates when the next token is available.
func retryAfterSeconds(lim *rate.Limiter) int {
	l := lim.Limit()
	if l == rate.Inf || l <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(l)))
	return max(secs, 1)
}
