package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps how often an expensive action (a watch-mode rebuild) runs.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter returns a token bucket refilling at perSec with the given burst.
// A non-positive perSec disables limiting.
func NewLimiter(perSec float64, burst int) *Limiter {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &Limiter{inner: rate.NewLimiter(limit, max(1, burst))}
}

func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx ends.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}
