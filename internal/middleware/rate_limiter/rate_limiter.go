package ratelimiter

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewRateLimiter allows requestsPerSecond with a burst of half that, and at
// least one.
func NewRateLimiter(requestsPerSecond rate.Limit) *rate.Limiter {
	return rate.NewLimiter(requestsPerSecond, max(1, int(requestsPerSecond/2)))
}

// RateLimitMiddleware is a middleware function that enforces rate limiting
func RateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check if the request should be allowed or rate-limited
		if limiter.Allow() {
			// If allowed, call the next handler
			next(w, r)
		} else {
			// If rate-limited, return a 429 (Too Many Requests) status
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		}
	}
}
