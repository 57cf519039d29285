package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/gate"
	"github.com/xraph/pacer/hook"
	"github.com/xraph/pacer/invoke"
	"github.com/xraph/pacer/job"
	"github.com/xraph/pacer/queue"
	"github.com/xraph/pacer/scheduler"
	"github.com/xraph/pacer/status"
)

// recordingInvoker records payloads and invocation times, and fails the
// first failN calls.
type recordingInvoker struct {
	mu    sync.Mutex
	calls [][]byte
	times []time.Time
	failN int
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, payload []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, payload)
	r.times = append(r.times, time.Now())
	if len(r.calls) <= r.failN {
		if r.err != nil {
			return nil, r.err
		}
		return nil, invoke.NewError(invoke.KindServer, errors.New("backend overloaded"))
	}
	return append([]byte("ok:"), payload...), nil
}

func (r *recordingInvoker) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = string(c)
	}
	return out
}

func newScheduler(t *testing.T, inv invoke.Invoker, minSpacing time.Duration, opts ...scheduler.Option) (*scheduler.Scheduler, *queue.Queue, *gate.Gate, *status.Feed) {
	t.Helper()

	q := queue.New()
	g := gate.New(minSpacing)
	feed := status.NewFeed()
	hooks := hook.NewRegistry(slog.Default())
	s := scheduler.New(q, g, inv, hooks, feed, slog.Default(), opts...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, q, g, feed
}

func waitHandle(t *testing.T, h *job.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("handle never settled")
	}
}

func TestScheduler_DrainsInPriorityOrder(t *testing.T) {
	inv := &recordingInvoker{}
	s, q, _, _ := newScheduler(t, inv, 0)

	ctx := context.Background()
	a := job.New(ctx, []byte("A"), job.WithPriority(1))
	b := job.New(ctx, []byte("B"), job.WithPriority(5))
	c := job.New(ctx, []byte("C"), job.WithPriority(1))

	// All three queued before the loop starts, so the first pop already
	// sees the full backlog.
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, h := range []*job.Handle{a.Handle(), b.Handle(), c.Handle()} {
		waitHandle(t, h)
	}

	got := inv.payloads()
	want := []string{"B", "A", "C"}
	if len(got) != len(want) {
		t.Fatalf("invocations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScheduler_EnforcesMinSpacing(t *testing.T) {
	const spacing = 120 * time.Millisecond

	inv := &recordingInvoker{}
	s, q, _, _ := newScheduler(t, inv, spacing)

	ctx := context.Background()
	first := job.New(ctx, []byte("first"))
	second := job.New(ctx, []byte("second"))
	q.Push(first)
	q.Push(second)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, first.Handle())
	waitHandle(t, second.Handle())

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(inv.times) != 2 {
		t.Fatalf("got %d invocations, want 2", len(inv.times))
	}
	if gap := inv.times[1].Sub(inv.times[0]); gap < spacing {
		t.Errorf("gap between dispatches = %v, want >= %v", gap, spacing)
	}
}

func TestScheduler_FirstDispatchIsImmediate(t *testing.T) {
	inv := &recordingInvoker{}
	s, q, _, _ := newScheduler(t, inv, time.Hour)

	ctx := context.Background()
	j := job.New(ctx, []byte("only"))
	q.Push(j)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-j.Handle().Done():
	case <-time.After(time.Second):
		t.Fatal("first dispatch should not wait on the gate")
	}
}

func TestScheduler_FailureDoesNotHaltLoop(t *testing.T) {
	boom := invoke.NewError(invoke.KindNetwork, errors.New("connection refused"))
	inv := &recordingInvoker{failN: 1, err: boom}
	s, q, _, feed := newScheduler(t, inv, 0,
		scheduler.WithMaxRetries(0),
	)
	_, updates := feed.Subscribe(64)

	ctx := context.Background()
	bad := job.New(ctx, []byte("bad"))
	good := job.New(ctx, []byte("good"))
	q.Push(bad)
	q.Push(good)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, bad.Handle())
	waitHandle(t, good.Handle())

	// The failure propagates unchanged to the submitter.
	if _, err := bad.Handle().Result(); !errors.Is(err, boom) {
		t.Errorf("bad handle error = %v, want %v", err, boom)
	}
	if kind, ok := invoke.KindOf(bad.Handle().Err()); !ok || kind != invoke.KindNetwork {
		t.Errorf("failure kind = %q (%v), want network", kind, ok)
	}

	// And the loop kept going.
	if result, err := good.Handle().Result(); err != nil || string(result) != "ok:good" {
		t.Errorf("good handle = (%q, %v), want (ok:good, nil)", result, err)
	}

	sawError := false
	deadline := time.After(time.Second)
	for !sawError {
		select {
		case u := <-updates:
			if u.State == status.StateError {
				sawError = true
				if !errors.Is(u.Err, boom) {
					t.Errorf("error update carries %v, want %v", u.Err, boom)
				}
			}
		case <-deadline:
			t.Fatal("no error status update observed")
		}
	}
}

func TestScheduler_RetriesThenSucceeds(t *testing.T) {
	inv := &recordingInvoker{failN: 2}
	s, q, _, _ := newScheduler(t, inv, 0,
		scheduler.WithBackoff(backoff.NewConstant(10*time.Millisecond)),
	)

	ctx := context.Background()
	j := job.New(ctx, []byte("flaky"))
	q.Push(j)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, j.Handle())

	if result, err := j.Handle().Result(); err != nil || string(result) != "ok:flaky" {
		t.Errorf("handle = (%q, %v), want success after retries", result, err)
	}
	if got := len(inv.payloads()); got != 3 {
		t.Errorf("invocations = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestScheduler_PerJobRetryOverride(t *testing.T) {
	inv := &recordingInvoker{failN: 10}
	s, q, _, _ := newScheduler(t, inv, 0,
		scheduler.WithBackoff(backoff.NewConstant(time.Millisecond)),
	)

	ctx := context.Background()
	j := job.New(ctx, []byte("no-retry"), job.WithMaxRetries(0))
	q.Push(j)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, j.Handle())

	if err := j.Handle().Err(); err == nil {
		t.Fatal("handle should reject when the only attempt fails")
	}
	if got := len(inv.payloads()); got != 1 {
		t.Errorf("invocations = %d, want exactly 1 with retries opted out", got)
	}
}

func TestScheduler_SkipsJobWithDoneContext(t *testing.T) {
	inv := &recordingInvoker{}
	s, q, _, _ := newScheduler(t, inv, 0)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	j := job.New(cancelled, []byte("stale"))
	q.Push(j)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, j.Handle())

	if err := j.Handle().Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("handle error = %v, want context.Canceled", err)
	}
	if got := len(inv.payloads()); got != 0 {
		t.Errorf("invoker called %d times for a cancelled job, want 0", got)
	}
	if j.State != job.StateCancelled {
		t.Errorf("state = %q, want cancelled", j.State)
	}
}

func TestScheduler_StopAbandonsGateWait(t *testing.T) {
	inv := &recordingInvoker{}
	s, q, g, _ := newScheduler(t, inv, time.Hour)

	ctx := context.Background()
	opener := job.New(ctx, []byte("opener"))
	q.Push(opener)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, opener.Handle())

	// The gate is now closed for an hour; the next job parks in Acquire.
	parked := job.New(ctx, []byte("parked"))
	q.Push(parked)

	// Give the loop a moment to reach the gate wait.
	deadline := time.After(time.Second)
	for g.Remaining() == 0 {
		select {
		case <-deadline:
			t.Fatal("gate never closed after the first success")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	waitHandle(t, parked.Handle())
	if err := parked.Handle().Err(); !errors.Is(err, scheduler.ErrStopped) {
		t.Errorf("parked handle error = %v, want ErrStopped", err)
	}
	if got := inv.payloads(); len(got) != 1 || got[0] != "opener" {
		t.Errorf("invocations = %v, want only the opener", got)
	}
}

func TestScheduler_PublishesWaitingThenDispatching(t *testing.T) {
	const spacing = 100 * time.Millisecond

	inv := &recordingInvoker{}
	s, q, _, feed := newScheduler(t, inv, spacing)
	_, updates := feed.Subscribe(64)

	ctx := context.Background()
	first := job.New(ctx, []byte("first"))
	second := job.New(ctx, []byte("second"))
	q.Push(first)
	q.Push(second)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitHandle(t, second.Handle())

	var sawWaiting, waitingBeforeSecondDispatch bool
	dispatches := 0
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case u := <-updates:
			switch u.State {
			case status.StateWaiting:
				sawWaiting = true
				if u.RemainingSeconds <= 0 {
					t.Errorf("waiting update with RemainingSeconds=%d", u.RemainingSeconds)
				}
			case status.StateDispatching:
				dispatches++
				if dispatches == 2 {
					waitingBeforeSecondDispatch = sawWaiting
					break collect
				}
			}
		case <-deadline:
			break collect
		}
	}

	if dispatches != 2 {
		t.Fatalf("saw %d dispatching updates, want 2", dispatches)
	}
	if !waitingBeforeSecondDispatch {
		t.Error("no waiting update before the second dispatch")
	}
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	inv := &recordingInvoker{}
	s, q, _, _ := newScheduler(t, inv, 0)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	j := job.New(ctx, []byte("x"))
	q.Push(j)
	waitHandle(t, j.Handle())

	// A second loop would have raced the pop; exactly one invocation
	// proves there is only one.
	if got := len(inv.payloads()); got != 1 {
		t.Errorf("invocations = %d, want 1", got)
	}
}

func TestScheduler_HooksObserveLifecycle(t *testing.T) {
	inv := &recordingInvoker{}

	q := queue.New()
	g := gate.New(0)
	feed := status.NewFeed()
	hooks := hook.NewRegistry(slog.Default())

	var mu sync.Mutex
	var events []string
	hooks.Register(lifecycleHook{record: func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}})

	s := scheduler.New(q, g, inv, hooks, feed, slog.Default())
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
	}()

	j := job.New(ctx, []byte("x"))
	q.Push(j)
	waitHandle(t, j.Handle())

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("events = %v, want started then completed", events)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if events[0] != "started" || events[1] != "completed" {
		t.Errorf("events = %v, want [started completed]", events)
	}
}

type lifecycleHook struct {
	record func(string)
}

func (h lifecycleHook) Name() string { return "lifecycle" }

func (h lifecycleHook) OnJobStarted(context.Context, *job.Job) error {
	h.record("started")
	return nil
}

func (h lifecycleHook) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	h.record("completed")
	return nil
}
