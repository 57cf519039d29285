package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/job"
)

func TestNew_Defaults(t *testing.T) {
	j := job.New(context.Background(), []byte("payload"))

	if j.ID.IsNil() {
		t.Fatal("expected a generated ID")
	}
	if j.State != job.StateQueued {
		t.Errorf("state = %q, want %q", j.State, job.StateQueued)
	}
	if j.Kind != "generic" {
		t.Errorf("kind = %q, want generic", j.Kind)
	}
	if j.Priority != 0 {
		t.Errorf("priority = %d, want 0", j.Priority)
	}
	if j.MaxRetries != job.UseDefaultRetries {
		t.Errorf("max retries = %d, want sentinel %d", j.MaxRetries, job.UseDefaultRetries)
	}
	if j.Handle() == nil {
		t.Fatal("expected a handle")
	}
}

func TestNew_Options(t *testing.T) {
	bo := backoff.NewConstant(time.Millisecond)
	j := job.New(context.Background(), nil,
		job.WithPriority(10),
		job.WithKind("explain"),
		job.WithMaxRetries(0),
		job.WithBackoff(bo),
		job.WithTimeout(time.Second),
		job.WithGeneration(7),
	)

	if j.Priority != 10 {
		t.Errorf("priority = %d, want 10", j.Priority)
	}
	if j.Kind != "explain" {
		t.Errorf("kind = %q, want explain", j.Kind)
	}
	if j.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0", j.MaxRetries)
	}
	if j.Backoff != bo {
		t.Error("backoff strategy not applied")
	}
	if j.Timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", j.Timeout)
	}
	if j.Generation != 7 {
		t.Errorf("generation = %d, want 7", j.Generation)
	}
	if j.Handle().Generation() != 7 {
		t.Errorf("handle generation = %d, want 7", j.Handle().Generation())
	}
}

func TestBefore_PriorityThenSeq(t *testing.T) {
	low := job.New(context.Background(), nil, job.WithPriority(1))
	low.Seq = 1
	high := job.New(context.Background(), nil, job.WithPriority(5))
	high.Seq = 2

	if !high.Before(low) {
		t.Error("higher priority should dispatch first despite later seq")
	}

	first := job.New(context.Background(), nil, job.WithPriority(3))
	first.Seq = 10
	second := job.New(context.Background(), nil, job.WithPriority(3))
	second.Seq = 11

	if !first.Before(second) {
		t.Error("equal priority should keep submission order")
	}
	if second.Before(first) {
		t.Error("FIFO tie-break is not symmetric")
	}
}

func TestHandle_ResolveOnce(t *testing.T) {
	h := job.New(context.Background(), nil).Handle()

	if !h.Resolve([]byte("ok")) {
		t.Fatal("first Resolve should settle")
	}
	if h.Resolve([]byte("again")) {
		t.Error("second Resolve should be a no-op")
	}
	if h.Reject(errors.New("late")) {
		t.Error("Reject after Resolve should be a no-op")
	}

	select {
	case <-h.Done():
	default:
		t.Fatal("Done channel should be closed after settlement")
	}

	result, err := h.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
}

func TestHandle_RejectOnce(t *testing.T) {
	h := job.New(context.Background(), nil).Handle()
	boom := errors.New("boom")

	if !h.Reject(boom) {
		t.Fatal("first Reject should settle")
	}
	if h.Resolve([]byte("late")) {
		t.Error("Resolve after Reject should be a no-op")
	}

	if !errors.Is(h.Err(), boom) {
		t.Errorf("Err() = %v, want %v", h.Err(), boom)
	}
	result, err := h.Result()
	if result != nil {
		t.Errorf("result = %q, want nil", result)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestHandle_Unsettled(t *testing.T) {
	h := job.New(context.Background(), nil).Handle()

	select {
	case <-h.Done():
		t.Fatal("Done should not be closed before settlement")
	default:
	}
	if h.Err() != nil {
		t.Errorf("unsettled Err() = %v, want nil", h.Err())
	}
}
