package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces operations with a token bucket and adds optional random delay
// on top of each granted token. It is safe for concurrent use by multiple
// goroutines.
type Limiter struct {
	bucket   *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a new limiter with the given requests per second (rps)
// and jitter factor. Jitter is clamped to [0.0, 1.0].
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}

	return &Limiter{
		bucket:   rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Interval returns the nominal spacing between operations (0 when unlimited).
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled. With jitter configured, a random extra delay of up to
// jitter*interval follows the token grant.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return nil
	}

	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	if l.jitter > 0 {
		// Calculate random jitter between +/- (jitter * interval). Negative
		// values run immediately since the bucket already enforced the interval.
		jitterFactor := (rand.Float64() * 2) - 1.0
		jitterDuration := time.Duration(float64(l.interval) * l.jitter * jitterFactor)

		if jitterDuration > 0 {
			timer := time.NewTimer(jitterDuration)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
