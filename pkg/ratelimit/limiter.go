package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the full burst
	Reset()
}

// TokenBucket is a token bucket backed by golang.org/x/time/rate
type TokenBucket struct {
	limit rate.Limit
	burst int
	inner *rate.Limiter
}

// NewTokenBucket allows requests per period with the given burst
func NewTokenBucket(requests int, period time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if requests > 0 && period > 0 {
		limit = rate.Every(period / time.Duration(requests))
	}
	return &TokenBucket{
		limit: limit,
		burst: burst,
		inner: rate.NewLimiter(limit, burst),
	}
}

// PerMinute is the constructor used for image fetches
func PerMinute(requests, burst int) *TokenBucket {
	return NewTokenBucket(requests, time.Minute, burst)
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.inner.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.inner.Wait(ctx)
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.inner = rate.NewLimiter(tb.limit, tb.burst)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                  { return true }
func (Unlimited) Wait(context.Context) error   { return nil }
func (Unlimited) Reset()                       {}
