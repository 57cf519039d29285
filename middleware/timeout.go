package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/pacer/job"
)

// Timeout returns middleware that enforces a per-job attempt deadline.
// If the job has a non-zero Timeout, a context.WithTimeout wraps the
// invocation. A deadline hit surfaces as an ordinary invocation failure
// and goes through the same retry policy as any other.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		if j.Timeout > 0 {
			logger.Debug("attempt deadline set",
				slog.String("job_id", j.ID.String()),
				slog.Duration("timeout", j.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, j.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
