// Package hook defines the extension system for pacer. Extensions are
// notified of lifecycle events (job queued, dispatched, completed,
// cancelled, gate waits) and can react to them — logging, metrics,
// UI refresh triggers.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/pacer/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobQueued is called after a job is admitted to the queue.
type JobQueued interface {
	OnJobQueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when the scheduler begins dispatching a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a dispatch finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a dispatch fails terminally (retries spent).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when an invocation fails but will be retried.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error
}

// JobCancelled is called when a queued job is cancelled before dispatch.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// GateWait is called when the scheduler starts waiting on the cooldown
// gate, with the remaining wait at that moment.
type GateWait interface {
	OnGateWait(ctx context.Context, j *job.Job, remaining time.Duration) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
