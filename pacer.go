package pacer

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/gate"
	"github.com/xraph/pacer/hook"
	"github.com/xraph/pacer/id"
	"github.com/xraph/pacer/invoke"
	"github.com/xraph/pacer/job"
	"github.com/xraph/pacer/middleware"
	"github.com/xraph/pacer/queue"
	"github.com/xraph/pacer/scheduler"
	"github.com/xraph/pacer/status"
)

// instrumentationScope names the pacer's OTel metrics and traces.
const instrumentationScope = "github.com/xraph/pacer"

// Pacer is the top-level coordinator: it owns the queue, the cooldown
// gate, the scheduler loop, the status feed, and the extension
// registry, and presents the submit/cancel/observe API around them.
type Pacer struct {
	cfg     Config
	logger  *slog.Logger
	invoker invoke.Invoker
	bo      backoff.Strategy

	userMW         []middleware.Middleware
	extensions     []hook.Extension
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	queue *queue.Queue
	gate  *gate.Gate
	feed  *status.Feed
	hooks *hook.Registry
	sched *scheduler.Scheduler

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a Pacer around the given backend invoker. The zero
// configuration paces dispatches 21s apart with 2 retries at a fixed
// 1s backoff.
func New(inv invoke.Invoker, opts ...Option) (*Pacer, error) {
	if inv == nil {
		return nil, ErrNoInvoker
	}

	p := &Pacer{
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		invoker: inv,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.bo == nil {
		p.bo = backoff.NewConstant(p.cfg.RetryBackoff)
	}

	p.queue = queue.New()
	p.gate = gate.New(p.cfg.MinSpacing)
	p.feed = status.NewFeed()
	p.hooks = hook.NewRegistry(p.logger)
	for _, ext := range p.extensions {
		p.hooks.Register(ext)
	}

	p.sched = scheduler.New(
		p.queue, p.gate, p.invoker, p.hooks, p.feed, p.logger,
		scheduler.WithMaxRetries(p.cfg.MaxRetries),
		scheduler.WithBackoff(p.bo),
		scheduler.WithMiddleware(p.buildChain()...),
	)
	return p, nil
}

// buildChain assembles the dispatch middleware, outermost first:
// recover, logging, metrics/tracing when configured, then user
// middleware, with the per-job timeout innermost so every layer sees
// the deadline error.
func (p *Pacer) buildChain() []middleware.Middleware {
	mws := []middleware.Middleware{
		middleware.Recover(p.logger),
		middleware.Logging(p.logger),
	}
	if p.meterProvider != nil {
		mws = append(mws, middleware.MetricsWithMeter(p.meterProvider.Meter(instrumentationScope)))
	}
	if p.tracerProvider != nil {
		mws = append(mws, middleware.TracingWithTracer(p.tracerProvider.Tracer(instrumentationScope)))
	}
	mws = append(mws, p.userMW...)
	mws = append(mws, middleware.Timeout(p.logger))
	return mws
}

// Start launches the scheduler loop. It returns ErrAlreadyStarted on a
// second call and ErrStopped after Stop; a Pacer is not restartable.
func (p *Pacer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	return p.sched.Start(ctx)
}

// Stop shuts the pacer down: the scheduler loop exits (waiting for the
// in-flight dispatch up to the shutdown timeout, or ctx if it expires
// earlier), every still-queued job rejects with ErrStopped, and the
// status feed closes.
func (p *Pacer) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && p.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := p.sched.Stop(ctx)

	if n := p.queue.Drain(ErrStopped); n > 0 {
		p.logger.Info("rejected queued jobs on shutdown", slog.Int("count", n))
	}
	p.feed.Close()
	return err
}

// Submit admits a job for the given payload and returns its completion
// handle. The handle settles exactly once: with the backend result,
// with the final invocation error after retries, or with a
// cancellation error. Submitting the same payload twice yields two
// independent jobs.
//
// After Stop the returned handle is already rejected with ErrStopped.
func (p *Pacer) Submit(ctx context.Context, payload []byte, opts ...job.Option) *job.Handle {
	j := job.New(ctx, payload, opts...)

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		j.State = job.StateCancelled
		j.Handle().Reject(ErrStopped)
		return j.Handle()
	}

	p.queue.Push(j)

	// Stop may have drained the queue between the check above and the
	// Push. Re-check after publishing the job: if the pacer stopped in
	// that window the scheduler will never pop again, so drain here to
	// keep the handle from dangling unsettled.
	p.mu.Lock()
	stopped = p.stopped
	p.mu.Unlock()
	if stopped {
		p.queue.Drain(ErrStopped)
		return j.Handle()
	}

	p.hooks.EmitJobQueued(ctx, j)

	p.logger.Debug("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.Int("priority", j.Priority),
	)
	return j.Handle()
}

// CancelQueued removes every queued job matching pred and rejects its
// handle. It returns the number of jobs cancelled. A job already
// dispatching is not affected; its result arrives normally and the
// caller discards it (compare handle generations).
func (p *Pacer) CancelQueued(pred func(*job.Job) bool) int {
	n := p.queue.CancelWhere(pred)
	if n > 0 {
		p.logger.Debug("cancelled queued jobs", slog.Int("count", n))
	}
	return n
}

// CancelKind cancels every queued job with the given kind.
func (p *Pacer) CancelKind(kind string) int {
	return p.CancelQueued(func(j *job.Job) bool { return j.Kind == kind })
}

// Status returns the most recent status update.
func (p *Pacer) Status() status.Update {
	return p.feed.Last()
}

// Subscribe registers a status subscriber. Updates arrive at most once
// per second; a subscriber that stops draining loses updates rather
// than blocking the scheduler.
func (p *Pacer) Subscribe(buffer int) (id.SubscriberID, <-chan status.Update) {
	return p.feed.Subscribe(buffer)
}

// Unsubscribe removes a status subscriber.
func (p *Pacer) Unsubscribe(sid id.SubscriberID) {
	p.feed.Unsubscribe(sid)
}

// QueueLen returns the number of jobs waiting for dispatch.
func (p *Pacer) QueueLen() int {
	return p.queue.Len()
}

// Pending returns a snapshot of the queued jobs, in no particular order.
func (p *Pacer) Pending() []*job.Job {
	return p.queue.Snapshot()
}
