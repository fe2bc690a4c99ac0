// Package middleware contains HTTP middleware for the conversion API.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/pkg/api"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	maxClients int

	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithRate sets requests per second and burst. A zero rate means unlimited.
func WithRate(perSecond float64, burst int) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.limit = rate.Limit(perSecond)
		rl.burst = burst
	}
}

// WithTTL sets how long an idle client's bucket is remembered.
func WithTTL(ttl time.Duration) RateLimitOption {
	return func(rl *RateLimiter) { rl.ttl = ttl }
}

// WithMaxClients bounds the number of tracked clients.
func WithMaxClients(n int) RateLimitOption {
	return func(rl *RateLimiter) { rl.maxClients = n }
}

// NewRateLimiter creates a per-client rate limiter.
func NewRateLimiter(opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		limit:      2,
		burst:      10,
		ttl:        5 * time.Minute,
		maxClients: 10000,
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.limiters = expirable.NewLRU[string, *rate.Limiter](rl.maxClients, nil, rl.ttl)
	return rl
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// RateLimit=0 means unlimited
			if rl.limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(api.ErrorResponse{
					Error: "Too Many Requests",
					Code:  "429",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiterFor(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters.Get(client); ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(client, limiter)
	return limiter
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already substituted forwarded addresses when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
