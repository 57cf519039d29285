package job

import (
	"time"

	"github.com/xraph/pacer/backoff"
)

// WithPriority sets the dispatch priority. Higher values dispatch first;
// equal priorities dispatch in submission order.
//
// Conventional bands for interactive callers:
//   - 10: explicit user command
//   - 5:  on-selection request
//   - 1:  background auto-analysis
func WithPriority(p int) Option {
	return func(j *Job) { j.Priority = p }
}

// WithKind labels the job for logs, metrics, and traces.
func WithKind(kind string) Option {
	return func(j *Job) { j.Kind = kind }
}

// WithMaxRetries overrides the pacer-wide retry count for this job.
// Zero disables retry; use for endpoints where re-sending is not free.
func WithMaxRetries(n int) Option {
	return func(j *Job) { j.MaxRetries = n }
}

// WithBackoff overrides the retry delay strategy for this job.
func WithBackoff(s backoff.Strategy) Option {
	return func(j *Job) { j.Backoff = s }
}

// WithTimeout bounds each invocation attempt for this job.
func WithTimeout(d time.Duration) Option {
	return func(j *Job) { j.Timeout = d }
}

// WithGeneration tags the job with a caller-side generation number.
// The scheduler never reads it; callers use it to discard results that
// a newer submission has superseded (a cancel after dispatch lets the
// call finish, so stale results must be dropped at the receiving end).
func WithGeneration(gen uint64) Option {
	return func(j *Job) { j.Generation = gen }
}
