package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type deliveryWindow struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// WebhookRateLimiter is a per-source fixed-window limiter for the unauthenticated
// webhook endpoint. Stale sources are pruned opportunistically on each call.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	ttl     time.Duration
	sources map[string]*deliveryWindow
}

// NewWebhookRateLimiter creates a limiter allowing limit deliveries per window
// per source key.
func NewWebhookRateLimiter(limit int, window, ttl time.Duration) *WebhookRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &WebhookRateLimiter{
		limit:   limit,
		window:  window,
		ttl:     ttl,
		sources: make(map[string]*deliveryWindow),
	}
}

// Allow reports whether a delivery from key is within the rate limit
func (rl *WebhookRateLimiter) Allow(key string) bool {
	now := time.Now()
	if key == "" {
		key = "unknown"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, w := range rl.sources {
		if now.Sub(w.lastSeen) > rl.ttl {
			delete(rl.sources, k)
		}
	}

	w, ok := rl.sources[key]
	if !ok {
		rl.sources[key] = &deliveryWindow{start: now, count: 1, lastSeen: now}
		return true
	}

	w.lastSeen = now
	if now.Sub(w.start) >= rl.window {
		w.start = now
		w.count = 1
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// WebhookRateLimitMiddleware rejects over-limit deliveries keyed by client IP
func WebhookRateLimitMiddleware(limiter *WebhookRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
