package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 5 * time.Second

// Policy bounds how an operation is retried. Only errors accepted by
// Retryable are retried; everything else is returned on the first attempt.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Jitter    float64
	Retryable func(error) bool
	Breaker   *Breaker
	Target    string
	Logger    *zerolog.Logger
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 3
	}
	return p.Attempts
}

func (p Policy) baseDelay() time.Duration {
	if p.BaseDelay <= 0 {
		return 200 * time.Millisecond
	}
	return p.BaseDelay
}

func (p Policy) retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return false
	}
	return p.Retryable(err)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts are exhausted. Delays grow exponentially from BaseDelay. When a
// breaker is configured and open, Do fails fast with ErrOpenCircuit.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	limit := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= limit; attempt++ {
		if p.Breaker != nil && !p.Breaker.Allow(ctx) {
			return zero, fmt.Errorf("%s: %w", op, ErrOpenCircuit)
		}
		result, err := fn(ctx)
		if err == nil {
			p.report(ctx, true)
			return result, nil
		}
		if !p.retryable(err) {
			// The backend answered; the failure is about the request.
			p.report(ctx, true)
			return zero, err
		}
		p.report(ctx, false)
		lastErr = err
		if attempt == limit {
			break
		}
		if RetryAttempts != nil {
			RetryAttempts.WithLabelValues(p.targetLabel(), op).Inc()
		}
		delay := Backoff(p.baseDelay(), attempt, p.Jitter)
		if p.Logger != nil {
			p.Logger.Warn().Err(err).Str("target", p.targetLabel()).Str("op", op).
				Int("attempt", attempt).Dur("delay", delay).Msg("store_retry")
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	if RetryExhausted != nil {
		RetryExhausted.WithLabelValues(p.targetLabel(), op).Inc()
	}
	return zero, fmt.Errorf("%s: giving up after %d attempts: %w", op, limit, lastErr)
}

// DoErr is Do for operations without a result.
func DoErr(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (p Policy) report(ctx context.Context, ok bool) {
	if p.Breaker != nil {
		p.Breaker.Report(ctx, ok)
	}
}

func (p Policy) targetLabel() string {
	if p.Target == "" {
		return "default"
	}
	return p.Target
}

// Backoff returns base doubled per prior attempt, capped at maxBackoff, with
// up to jitter (0.2 == 20%) of the delay added or removed at random.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
