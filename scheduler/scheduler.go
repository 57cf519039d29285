// Package scheduler runs the pacing control loop: pop the highest
// priority job, wait out the cooldown gate, dispatch through middleware
// and the retry wrapper, settle the job's handle, repeat. At most one
// dispatch is in flight at any instant; that single-flight guarantee is
// what protects the rate-limited backend, together with the gate.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/gate"
	"github.com/xraph/pacer/hook"
	"github.com/xraph/pacer/invoke"
	"github.com/xraph/pacer/job"
	"github.com/xraph/pacer/middleware"
	"github.com/xraph/pacer/queue"
	"github.com/xraph/pacer/status"
)

// ErrStopped rejects jobs that were popped or queued when the
// scheduler shut down.
var ErrStopped = errors.New("pacer: scheduler stopped")

// Scheduler drains the queue at exactly the rate the gate permits.
//
// The loop is a single goroutine, so queue pops, gate bookkeeping, and
// handle settlement never race each other; the only concurrency is
// between the loop and submitters, which meet inside the queue's lock.
type Scheduler struct {
	queue   *queue.Queue
	gate    *gate.Gate
	invoker invoke.Invoker
	retryer *invoke.Retryer
	hooks   *hook.Registry
	feed    *status.Feed
	logger  *slog.Logger

	mw         middleware.Middleware
	maxRetries int
	bo         backoff.Strategy

	mu      sync.Mutex
	running bool

	stopCh   chan struct{}
	wg       sync.WaitGroup
	loopCtx  context.Context
	loopStop context.CancelFunc

	// current is the job being waited for or dispatched, read by the
	// gate tick callback to tag countdown updates.
	currentMu sync.Mutex
	current   *job.Job

	inflightMu     sync.Mutex
	inflightCancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxRetries sets the default retry count for jobs that did not
// choose their own.
func WithMaxRetries(n int) Option {
	return func(s *Scheduler) { s.maxRetries = n }
}

// WithBackoff sets the default retry backoff strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Scheduler) { s.bo = b }
}

// WithMiddleware sets the dispatch middleware chain.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.mw = middleware.Chain(mws...) }
}

// New creates a Scheduler over the given queue, gate, and invoker.
func New(
	q *queue.Queue,
	g *gate.Gate,
	inv invoke.Invoker,
	hooks *hook.Registry,
	feed *status.Feed,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		queue:      q,
		gate:       g,
		invoker:    inv,
		hooks:      hooks,
		feed:       feed,
		logger:     logger,
		mw:         middleware.Chain(),
		maxRetries: 2,
		bo:         backoff.DefaultStrategy(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retryer = invoke.NewRetryer(s.bo, logger)
	g.SetTickFunc(s.gateTick)
	return s
}

// Start launches the control loop. It returns immediately; a second
// Start is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.loopCtx, s.loopStop = context.WithCancel(context.Background())

	s.logger.Info("scheduler starting",
		slog.Duration("min_spacing", s.gate.MinSpacing()),
		slog.Int("max_retries", s.maxRetries),
	)

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop shuts the loop down. A gate wait is abandoned immediately (the
// popped job rejects with ErrStopped); an in-flight invocation may
// finish until ctx expires, then it is cancelled. A second Stop is a
// no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopping")

	close(s.stopCh)
	s.loopStop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out, cancelling in-flight dispatch")
		s.cancelInflight()
		s.wg.Wait()
	}

	s.hooks.EmitShutdown(context.Background())
	return nil
}

// run is the drain loop: after every dispatch it re-checks the queue
// immediately, so a backlog is processed continuously at exactly the
// rate the gate permits.
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		j, ok := s.queue.Pop()
		if !ok {
			s.publish(status.Update{State: status.StateIdle})
			select {
			case <-s.stopCh:
				return
			case <-s.queue.Wake():
			}
			continue
		}

		s.dispatch(j)
	}
}

// dispatch runs one job through gate, middleware, and retry, and
// settles its handle exactly once. A job failure never stops the loop.
func (s *Scheduler) dispatch(j *job.Job) {
	// The submitter may have walked away while the job sat queued.
	if err := j.Context.Err(); err != nil {
		j.State = job.StateCancelled
		j.Handle().Reject(err)
		s.hooks.EmitJobCancelled(context.Background(), j)
		return
	}

	s.setCurrent(j)
	defer s.setCurrent(nil)

	if rem := s.gate.Remaining(); rem > 0 {
		s.publish(status.Update{
			State:            status.StateWaiting,
			RemainingSeconds: status.RemainingSeconds(rem),
			JobID:            j.ID,
		})
		s.hooks.EmitGateWait(s.loopCtx, j, rem)
	}

	if err := s.gate.Acquire(s.loopCtx); err != nil {
		// Only Stop cancels the loop context.
		j.State = job.StateCancelled
		j.Handle().Reject(ErrStopped)
		s.hooks.EmitJobCancelled(context.Background(), j)
		return
	}

	j.State = job.StateDispatched
	ctx, cancel := context.WithCancel(context.Background())
	s.trackInflight(cancel)
	defer func() {
		s.trackInflight(nil)
		cancel()
	}()

	s.publish(status.Update{State: status.StateDispatching, JobID: j.ID})
	s.hooks.EmitJobStarted(ctx, j)

	maxRetries := j.MaxRetries
	if maxRetries == job.UseDefaultRetries {
		maxRetries = s.maxRetries
	}
	strategy := j.Backoff
	if strategy == nil {
		strategy = s.bo
	}

	terminal := func(ctx context.Context) ([]byte, error) {
		return s.invoker.Invoke(ctx, j.Payload)
	}

	attempts := 0
	fn := func(ctx context.Context) ([]byte, error) {
		if attempts > 0 {
			j.RetryCount = attempts
			s.hooks.EmitJobRetrying(ctx, j, attempts, strategy.Delay(attempts))
		}
		attempts++
		return s.mw(ctx, j, terminal)
	}

	start := time.Now()
	result, err := s.retryer.Do(ctx, fn, maxRetries, strategy)
	elapsed := time.Since(start)

	if err != nil {
		s.settleFailure(j, err, elapsed)
		return
	}
	s.settleSuccess(j, result, elapsed)
}

func (s *Scheduler) settleSuccess(j *job.Job, result []byte, elapsed time.Duration) {
	j.State = job.StateDone
	j.Handle().Resolve(result)
	// Cooldown restarts from the end of a successful call only.
	s.gate.RecordSuccess()
	s.hooks.EmitJobCompleted(context.Background(), j, elapsed)

	s.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.Duration("elapsed", elapsed),
	)
}

func (s *Scheduler) settleFailure(j *job.Job, err error, elapsed time.Duration) {
	j.State = job.StateFailed
	j.LastError = err.Error()
	j.Handle().Reject(err)
	s.hooks.EmitJobFailed(context.Background(), j, err)
	s.publish(status.Update{State: status.StateError, JobID: j.ID, Err: err})

	s.logger.Warn("job failed after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.Int("retry_count", j.RetryCount),
		slog.Duration("elapsed", elapsed),
		slog.String("error", err.Error()),
	)
}

// gateTick receives countdown emissions from the gate and republishes
// them tagged with the job currently waiting.
func (s *Scheduler) gateTick(remaining time.Duration) {
	if remaining <= 0 {
		// The Dispatching transition follows immediately.
		return
	}
	u := status.Update{
		State:            status.StateWaiting,
		RemainingSeconds: status.RemainingSeconds(remaining),
	}
	if j := s.getCurrent(); j != nil {
		u.JobID = j.ID
	}
	s.publish(u)
}

func (s *Scheduler) publish(u status.Update) {
	if s.feed != nil {
		s.feed.Publish(u)
	}
}

func (s *Scheduler) setCurrent(j *job.Job) {
	s.currentMu.Lock()
	s.current = j
	s.currentMu.Unlock()
}

func (s *Scheduler) getCurrent() *job.Job {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	return s.current
}

func (s *Scheduler) trackInflight(cancel context.CancelFunc) {
	s.inflightMu.Lock()
	s.inflightCancel = cancel
	s.inflightMu.Unlock()
}

func (s *Scheduler) cancelInflight() {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflightCancel != nil {
		s.inflightCancel()
	}
}
