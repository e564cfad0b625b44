// Package resilience retries startup connections to the store and cache.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls retry behavior with exponential backoff and jitter.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps any single delay.
	Max time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64

	// Jitter adds a random ±fraction of the computed delay.
	Jitter float64

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool
}

// ConnectBackoff is used when opening a database pool or cache client.
func ConnectBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    200 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func Retry(ctx context.Context, b Backoff, op string, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for operations that return a value.
func RetryValue[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.withDefaults()
	shouldRetry := b.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == b.Attempts-1 {
			break
		}

		delay := b.delay(attempt, rand.Float64())
		zap.L().Warn("retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (b Backoff) withDefaults() Backoff {
	d := ConnectBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = d.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// delay is the wait after the given zero-based attempt. r in [0,1) picks
// the jitter.
func (b Backoff) delay(attempt int, r float64) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (r*2 - 1) * d * b.Jitter
	}
	return time.Duration(max(d, 0))
}
