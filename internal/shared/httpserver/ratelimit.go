package httpserver

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cristianortiz/propertyauction/internal/shared/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

// clientLimiter is the bucket of one client and the unix nanos of its last request.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client key. Buckets idle for longer than
// IdleTTL are dropped by Run.
type RateLimiter struct {
	limiters sync.Map
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	keyFunc  func(c *fiber.Ctx) string
	now      func() time.Time
}

// NewRateLimiter limits by client ip unless keyFunc is given.
func NewRateLimiter(cfg config.RateLimitConfig, keyFunc func(c *fiber.Ctx) string) *RateLimiter {
	if keyFunc == nil {
		keyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
		idleTTL: idle,
		keyFunc: keyFunc,
		now:     time.Now,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	v, ok := rl.limiters.Load(key)
	if !ok {
		v, _ = rl.limiters.LoadOrStore(key, &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)})
	}
	cl := v.(*clientLimiter)
	cl.lastSeen.Store(rl.now().UnixNano())
	return cl.limiter
}

// Evict drops the buckets not used since before now minus IdleTTL and returns how
// many were removed. A dropped client starts again with a full bucket.
func (rl *RateLimiter) Evict(now time.Time) int {
	cutoff := now.Add(-rl.idleTTL).UnixNano()
	removed := 0
	rl.limiters.Range(func(key, v any) bool {
		if v.(*clientLimiter).lastSeen.Load() < cutoff {
			rl.limiters.CompareAndDelete(key, v)
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	n := 0
	rl.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run evicts idle buckets every half IdleTTL until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Evict(rl.now()); n > 0 {
				log.Debug("Evicted idle rate limiters", zap.Int("count", n))
			}
		}
	}
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.keyFunc(c)
		l := rl.limiter(key)
		if !l.Allow() {
			r := l.Reserve()
			wait := r.Delay()
			r.Cancel()

			c.Set("X-RateLimit-Remaining", "0")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			log.Warn("Rate limit exceeded", zap.String("key", key), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{"code": "rate_limited", "message": "too many requests", "retryable": true},
			})
		}
		return c.Next()
	}
}
