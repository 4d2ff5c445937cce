package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/vigil-backend/internal/response"
)

// RateLimiter is a per-client token bucket keyed on the requester IP.
// It fronts mutating routes so a misbehaving invigilation terminal cannot
// flood transitions or roster imports.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate     int           // tokens granted per interval
	interval time.Duration // refill period
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing rate requests per interval
// for each client IP.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}

	go func() {
		for range time.Tick(time.Minute) {
			rl.evictIdle()
		}
	}()

	return rl
}

// Middleware enforces the limit, answering 429 once a bucket runs dry.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		b, ok := rl.buckets[ip]
		if !ok {
			b = &bucket{tokens: rl.rate, lastSeen: time.Now()}
			rl.buckets[ip] = b
		}

		// Whole intervals elapsed since the last visit each grant a
		// full allotment, capped at the bucket size.
		if refill := int(time.Since(b.lastSeen)/rl.interval) * rl.rate; refill > 0 {
			b.tokens = min(b.tokens+refill, rl.rate)
			b.lastSeen = time.Now()
		}

		if b.tokens <= 0 {
			rl.mu.Unlock()
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		b.tokens--
		rl.mu.Unlock()
		c.Next()
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if time.Since(b.lastSeen) > 3*rl.interval {
			delete(rl.buckets, ip)
		}
	}
}
