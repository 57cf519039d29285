package invoke

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/pacer/backoff"
)

// Retryer wraps a single invocation with bounded retry. Each attempt is
// fresh (no result caching); on exhaustion the last failure propagates
// unchanged so no error detail is lost.
type Retryer struct {
	strategy backoff.Strategy
	logger   *slog.Logger
}

// NewRetryer creates a Retryer with the given default backoff strategy.
// A nil strategy falls back to backoff.DefaultStrategy (fixed 1s).
func NewRetryer(strategy backoff.Strategy, logger *slog.Logger) *Retryer {
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{strategy: strategy, logger: logger}
}

// Do calls fn, retrying up to maxRetries times after failures with the
// given strategy (nil means the Retryer's default). A success on
// attempt k returns that result after exactly k backoff delays; total
// attempts never exceed maxRetries+1. Context cancellation during a
// backoff wait aborts with the context error.
func (r *Retryer) Do(
	ctx context.Context,
	fn func(ctx context.Context) ([]byte, error),
	maxRetries int,
	strategy backoff.Strategy,
) ([]byte, error) {
	if strategy == nil {
		strategy = r.strategy
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= maxRetries {
			return nil, lastErr
		}

		delay := strategy.Delay(attempt + 1)
		r.logger.Info("invocation failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
