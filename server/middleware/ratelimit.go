package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/uniai/errors"
)

// RateLimitConfig configures the sliding-window rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the per-key budget. Zero or negative means 60.
	RequestsPerMinute int
	// KeyFunc extracts the limiting key from a request. Defaults to the
	// client IP; SessionKey limits per conversation instead.
	KeyFunc func(*gin.Context) string
}

// RateLimit rejects requests over the per-key budget with a 429 carrying
// the rate-limit error shape providers use, so clients handle both the
// same way.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPKey
	}

	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.RequestsPerMinute,
	}
	go rl.cleanup()

	return func(c *gin.Context) {
		if !rl.allow(cfg.KeyFunc(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.RateLimited("").ToResponse())
			return
		}
		c.Next()
	}
}

// IPKey keys the limiter by client IP.
func IPKey(c *gin.Context) string {
	return c.ClientIP()
}

// SessionKey keys the limiter by the session_id query parameter, falling
// back to the client IP when it is absent.
func SessionKey(c *gin.Context) string {
	if sid := c.Query("session_id"); sid != "" {
		return sid
	}
	return c.ClientIP()
}

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	valid := pruneBefore(rl.requests[key], cutoff)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, time.Now())
	return true
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-time.Minute)
		for key, times := range rl.requests {
			valid := pruneBefore(times, cutoff)
			if len(valid) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = valid
			}
		}
		rl.mu.Unlock()
	}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	var kept []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
