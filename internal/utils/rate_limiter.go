// internal/utils/rate_limiter.go
package utils

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps the golang.org/x/time/rate limiter
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the
// given burst. A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until the rate limiter allows the next request
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// SetLimit changes the rate limit
func (rl *RateLimiter) SetLimit(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		rl.limiter.SetLimit(rate.Inf)
		return
	}
	rl.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// SetBurst changes the burst size
func (rl *RateLimiter) SetBurst(newBurst int) {
	rl.limiter.SetBurst(newBurst)
}
