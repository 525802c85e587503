package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per key: an MCP session id or a
// client IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	every    time.Duration
	burst    int
}

// NewRateLimiter allows perMinute calls per key with a burst of the same
// size. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{limiters: make(map[string]*rate.Limiter), burst: perMinute}
	if perMinute > 0 {
		rl.every = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// getLimiter returns the rate limiter for key, creating one if it doesn't exist.
func (s *RateLimiter) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(s.every), s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether key may make another call now.
func (s *RateLimiter) Allow(key string) bool {
	if s == nil || s.burst <= 0 {
		return true
	}
	return s.getLimiter(key).Allow()
}

// Forget drops the bucket of a closed session.
func (s *RateLimiter) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.limiters, key)
	s.mu.Unlock()
}

// RateLimitMiddleware limits HTTP requests per client IP.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := getClientIP(c)
		if !limiter.Allow(ip) {
			zap.L().Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
