package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Chain tries its completers in order. Each completer is retried on
// transient errors; quota and auth failures move on to the next one.
type Chain struct {
	completers []Completer
	retry      RetryConfig
	metrics    MetricsRecorder
}

// NewChain creates a chain. An empty chain reports ErrCapabilityUnavailable.
func NewChain(completers []Completer, retry RetryConfig, metrics MetricsRecorder) *Chain {
	return &Chain{completers: completers, retry: retry, metrics: metrics}
}

// Len returns the number of completers.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.completers)
}

// Complete runs req through the chain.
func (c *Chain) Complete(ctx context.Context, req Request) (string, error) {
	if c.Len() == 0 {
		return "", errUnavailable
	}

	var errs []error
	for i, comp := range c.completers {
		start := time.Now()
		var out string
		err := withRetry(ctx, c.retry, func(attempt int, err error) {
			slog.DebugContext(ctx, "retrying LLM call",
				"provider", comp.Provider(), "model", comp.Model(),
				"operation", req.Operation, "attempt", attempt, "error", err)
		}, func() error {
			var err error
			out, err = comp.Complete(ctx, req)
			return err
		})
		c.record(comp.Provider(), req.Operation, err, time.Since(start))
		if err == nil {
			if i > 0 {
				c.recordFallback(c.completers[0].Provider(), comp.Provider(), req.Operation)
			}
			return out, nil
		}

		errs = append(errs, fmt.Errorf("%s/%s: %w", comp.Provider(), comp.Model(), err))
		action := ClassifyError(err)
		slog.WarnContext(ctx, "LLM call failed",
			"provider", comp.Provider(), "model", comp.Model(),
			"operation", req.Operation, "action", action, "error", err)
		if action == ActionFail || ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

// Close closes every completer.
func (c *Chain) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, comp := range c.completers {
		if err := comp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Chain) record(p Provider, op string, err error, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordLLM(p.String(), op, errorStatus(err), d)
	}
}

func (c *Chain) recordFallback(from, to Provider, op string) {
	if c.metrics != nil {
		c.metrics.RecordLLMFallback(from.String(), to.String(), op)
	}
}
