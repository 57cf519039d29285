package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/pacer/job"
)

// Logging returns middleware that logs dispatch start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		logger.Info("dispatch started",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.Int("priority", j.Priority),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("dispatch failed",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("dispatch completed",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
