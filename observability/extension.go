// Package observability provides a pacer extension that records job
// lifecycle metrics through OpenTelemetry. It complements the dispatch
// middleware: the middleware measures the invocation itself, this
// extension counts lifecycle events the middleware never sees (queued,
// cancelled, gate waits).
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/pacer/job"
)

const meterName = "github.com/xraph/pacer/observability"

// Extension records lifecycle metrics. Register it with the pacer's
// hook registry; every instrument is created once at construction and
// is safe for concurrent use.
//
// Instruments:
//   - pacer.job.queued / completed / failed / retried / cancelled
//     (Int64Counter), attributes: kind, priority
//   - pacer.job.duration (Float64Histogram): queue admission to handle
//     settlement, in seconds
//   - pacer.gate.wait (Float64Histogram): cooldown wait ahead of a
//     dispatch, in seconds
type Extension struct {
	queued    metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	cancelled metric.Int64Counter
	duration  metric.Float64Histogram
	gateWait  metric.Float64Histogram
}

// New creates the extension using the global OTel MeterProvider. With
// no provider configured the instruments are noops and the extension
// costs nothing.
func New() *Extension {
	return NewWithMeter(otel.Meter(meterName))
}

// NewWithMeter creates the extension with a specific meter, for tests
// or callers that manage their own MeterProvider.
func NewWithMeter(meter metric.Meter) *Extension {
	e := &Extension{}

	// Instrument creation errors leave the OTel noop instrument in
	// place, so the extension degrades instead of failing.
	e.queued, _ = meter.Int64Counter("pacer.job.queued",
		metric.WithDescription("Jobs admitted to the queue"),
		metric.WithUnit("{job}"),
	)
	e.completed, _ = meter.Int64Counter("pacer.job.completed",
		metric.WithDescription("Jobs completed successfully"),
		metric.WithUnit("{job}"),
	)
	e.failed, _ = meter.Int64Counter("pacer.job.failed",
		metric.WithDescription("Jobs failed after exhausting retries"),
		metric.WithUnit("{job}"),
	)
	e.retried, _ = meter.Int64Counter("pacer.job.retried",
		metric.WithDescription("Retry attempts across all jobs"),
		metric.WithUnit("{attempt}"),
	)
	e.cancelled, _ = meter.Int64Counter("pacer.job.cancelled",
		metric.WithDescription("Jobs cancelled before dispatch"),
		metric.WithUnit("{job}"),
	)
	e.duration, _ = meter.Float64Histogram("pacer.job.duration",
		metric.WithDescription("Time from submission to completion in seconds"),
		metric.WithUnit("s"),
	)
	e.gateWait, _ = meter.Float64Histogram("pacer.gate.wait",
		metric.WithDescription("Cooldown wait before a dispatch in seconds"),
		metric.WithUnit("s"),
	)
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "observability" }

func jobAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", j.Kind),
		attribute.Int("priority", j.Priority),
	)
}

// OnJobQueued implements hook.JobQueued.
func (e *Extension) OnJobQueued(ctx context.Context, j *job.Job) error {
	e.queued.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	attrs := jobAttrs(j)
	e.completed.Add(ctx, 1, attrs)
	e.duration.Record(ctx, time.Since(j.SubmittedAt).Seconds(), attrs)
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	attrs := jobAttrs(j)
	e.failed.Add(ctx, 1, attrs)
	e.duration.Record(ctx, time.Since(j.SubmittedAt).Seconds(), attrs)
	return nil
}

// OnJobRetrying implements hook.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Duration) error {
	e.retried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	e.cancelled.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnGateWait implements hook.GateWait.
func (e *Extension) OnGateWait(ctx context.Context, j *job.Job, remaining time.Duration) error {
	e.gateWait.Record(ctx, remaining.Seconds(), jobAttrs(j))
	return nil
}
