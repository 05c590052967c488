package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// PerIPLimiter throttles clients per source IP before they reach the school
// API. Health and metrics paths are exempt so monitoring is never
// throttled; for multi-instance deployments swap the state to Redis.
type PerIPLimiter struct {
	perMinute int
	burst     int
	exempt    map[string]struct{}
	mu        sync.Mutex
	state     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewPerIPLimiter creates a limiter allowing perMinute requests with an equal
// burst. Requests to exemptPaths bypass the limiter entirely.
func NewPerIPLimiter(perMinute int, exemptPaths ...string) *PerIPLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &PerIPLimiter{
		perMinute: perMinute,
		burst:     perMinute,
		exempt:    exempt,
		state:     make(map[string]*bucket),
	}
}

// Middleware returns a gin handler enforcing the per-IP limit.
func (l *PerIPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := l.exempt[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *PerIPLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: float64(l.burst) - 1, last: now}
		return true
	}
	b.tokens += now.Sub(b.last).Minutes() * float64(l.perMinute)
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
