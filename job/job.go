// Package job defines the unit of work submitted to a pacer: the Job
// itself, its lifecycle states, per-job options, and the completion
// Handle through which the submitter receives the result.
package job

import (
	"context"
	"time"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateQueued means the job is waiting in the priority queue.
	StateQueued State = "queued"
	// StateCancelled means the job was removed from the queue before
	// dispatch. Its handle rejects with the cancellation error.
	StateCancelled State = "cancelled"
	// StateDispatched means the scheduler is executing the job's
	// backend invocation (including retries).
	StateDispatched State = "dispatched"
	// StateDone means the invocation succeeded and the handle resolved.
	StateDone State = "done"
	// StateFailed means retries were exhausted and the handle rejected.
	StateFailed State = "failed"
)

// UseDefaultRetries is the MaxRetries sentinel meaning "inherit the
// pacer-wide default". Jobs opt out of retry entirely with
// WithMaxRetries(0).
const UseDefaultRetries = -1

// Job represents one pending backend invocation.
//
// A Job is owned by the queue from Push until Pop, then by the scheduler
// until its handle settles. Priority orders dispatch (higher first);
// Seq breaks ties in submission order and is assigned by the queue.
type Job struct {
	ID   id.RequestID `json:"id"`
	Kind string       `json:"kind"`

	// Payload is the opaque work descriptor handed to the invoker.
	Payload []byte `json:"payload"`

	Priority int    `json:"priority"`
	Seq      uint64 `json:"seq"`
	State    State  `json:"state"`

	// MaxRetries and Backoff control the retry wrapper for this job
	// only. UseDefaultRetries / nil inherit the pacer defaults.
	MaxRetries int              `json:"max_retries"`
	Backoff    backoff.Strategy `json:"-"`

	// Timeout bounds a single invocation attempt. Zero means no
	// job-level deadline; a deadline hit counts as an ordinary
	// invocation failure and is retried like any other.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Generation is a caller-supplied supersession tag. The core never
	// interprets it; callers compare it against their current
	// generation to discard stale results.
	Generation uint64 `json:"generation,omitempty"`

	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`

	// Context carries the submitter's cancellation. A queued job whose
	// context is already done when popped is rejected, not dispatched.
	Context context.Context `json:"-"`

	handle *Handle
}

// Option configures a Job at submission time.
type Option func(*Job)

// New creates a Job for the given payload with a fresh ID and handle.
// Typically called by the pacer's Submit, not directly.
func New(ctx context.Context, payload []byte, opts ...Option) *Job {
	if ctx == nil {
		ctx = context.Background()
	}

	j := &Job{
		ID:          id.NewRequestID(),
		Kind:        "generic",
		Payload:     payload,
		State:       StateQueued,
		MaxRetries:  UseDefaultRetries,
		SubmittedAt: time.Now(),
		Context:     ctx,
		handle:      newHandle(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.handle.generation = j.Generation

	return j
}

// Handle returns the job's completion handle.
func (j *Job) Handle() *Handle { return j.handle }

// Before reports whether j should be dispatched before other.
// Priority descending, then submission sequence ascending, so
// equal-priority jobs stay FIFO and cannot starve each other.
func (j *Job) Before(other *Job) bool {
	if j.Priority != other.Priority {
		return j.Priority > other.Priority
	}
	return j.Seq < other.Seq
}
