package genai

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// CalculateBackoff returns the delay before retry attempt n (1-based):
//
//	delay = random(0, min(maxDelay, initial * 2^(attempt-1)))
//
// See https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func CalculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(n.Int64())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasSufficientBudget reports whether ctx leaves at least required time.
func HasSufficientBudget(ctx context.Context, required time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= required
}

// withRetry calls fn until it succeeds, returns a non-retryable error, runs
// out of attempts or the deadline cannot fit the next backoff.
func withRetry(ctx context.Context, cfg RetryConfig, onRetry func(attempt int, err error), fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ClassifyError(err) != ActionRetry || attempt == attempts-1 {
			return err
		}

		backoff := CalculateBackoff(attempt+1, cfg.InitialDelay, cfg.MaxDelay)
		if !HasSufficientBudget(ctx, backoff) {
			return lastErr
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		if err := Sleep(ctx, backoff); err != nil {
			return lastErr
		}
	}
	return lastErr
}
