package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces request starts at least delay apart across all callers.
//
// Design decision: We combine a golang.org/x/time/rate bucket with a
// last-grant timestamp, both guarded by one mutex, because:
//  1. The bucket (burst 1) makes the first call free and paces the rest
//  2. The timestamp turns timer jitter into extra delay, never less
//  3. Holding the mutex across the wait serializes concurrent callers, so no
//     two of them can observe "no previous request" at the same time
//
// A nil *Limiter is valid and never blocks.
type Limiter struct {
	delay   time.Duration
	mu      sync.Mutex
	bucket  *rate.Limiter
	last    time.Time
	granted atomic.Int64
}

// New creates a Limiter that grants at most one request per delay.
// It returns nil when delay is not positive, which disables rate limiting.
func New(delay time.Duration) *Limiter {
	if delay <= 0 {
		return nil
	}
	return &Limiter{
		delay:  delay,
		bucket: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Delay returns the minimum spacing between grants. Zero for a nil Limiter.
func (l *Limiter) Delay() time.Duration {
	if l == nil {
		return 0
	}
	return l.delay
}

// Acquire blocks until at least delay has elapsed since the previous grant.
// The first call returns immediately. The only error is cancellation of ctx,
// in which case no grant is recorded.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", waitError(ctx, err))
	}

	if !l.last.IsZero() {
		if rest := time.Until(l.last.Add(l.delay)); rest > 0 {
			timer := time.NewTimer(rest)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return fmt.Errorf("rate limiter: %w", ctx.Err())
			}
		}
	}

	l.last = time.Now()
	l.granted.Add(1)
	return nil
}

// Grants returns how many acquisitions have been granted so far.
func (l *Limiter) Grants() int64 {
	if l == nil {
		return 0
	}
	return l.granted.Load()
}

// waitError prefers the context's own error so callers can match
// context.Canceled and context.DeadlineExceeded with errors.Is.
// rate.Limiter.Wait also fails early when the deadline would expire before
// a token is available; that case is reported as DeadlineExceeded.
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
