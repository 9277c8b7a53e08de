// Package ratelimit provides per-IP rate limiting middleware using a token
// bucket per client.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the configuration for rate limiting
type Config struct {
	// Enabled enables rate limiting
	Enabled bool
	// RequestsPerMin is the number of requests allowed per minute per IP
	RequestsPerMin int
	// BurstSize is the maximum burst size
	BurstSize int
	// CleanupMinutes is how often to clean up stale entries
	CleanupMinutes int
}

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-IP rate limiters
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	stopCh   chan struct{}
}

// New creates a new RateLimiter with the given configuration
func New(cfg Config) *RateLimiter {
	cleanupDuration := time.Duration(cfg.CleanupMinutes) * time.Minute
	if cleanupDuration <= 0 {
		cleanupDuration = 10 * time.Minute
	}

	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    cfg.BurstSize,
		cleanup:  cleanupDuration,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeStale()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) removeStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.cleanup)
	for ip, limiter := range rl.limiters {
		if limiter.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// getLimiter gets or creates a rate limiter for the given IP
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[ip]; exists {
		limiter.lastSeen = time.Now()
		return limiter.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{
		limiter:  limiter,
		lastSeen: time.Now(),
	}
	return limiter
}

// healthCheckPaths are exempt from rate limiting
var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// Middleware returns an HTTP middleware that rate limits requests per IP
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if healthCheckPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.getLimiter(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware returns a rate limiting middleware with the given configuration.
// The returned RateLimiter's cleanup goroutine runs for the lifetime of the
// process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	rl := New(cfg)
	return rl.Middleware()
}

// clientIP extracts the peer address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
