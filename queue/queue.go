// Package queue implements the pending-work side of a pacer: an ordered
// multiset of queued jobs, highest priority first, FIFO within a
// priority, with predicate-based cancellation of not-yet-dispatched work.
package queue

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/xraph/pacer/job"
)

// ErrCancelled rejects the handle of a job removed from the queue by
// CancelWhere before it was dispatched.
var ErrCancelled = errors.New("pacer: job cancelled before dispatch")

// Queue holds queued jobs in dispatch order. All operations are
// non-blocking; the scheduler waits on Wake for new work.
//
// Ordering invariant: Pop always returns the highest-priority job, and
// among equal priorities the earliest-submitted one. A job removed by
// CancelWhere is never returned by Pop.
type Queue struct {
	mu    sync.Mutex
	items jobHeap
	seq   uint64
	wake  chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{wake: make(chan struct{}, 1)}
	heap.Init(&q.items)
	return q
}

// Push admits a job, stamping its submission sequence, and signals the
// scheduler. Two submissions of the same payload are two independent
// jobs; the queue never deduplicates.
func (q *Queue) Push(j *job.Job) {
	q.mu.Lock()
	q.seq++
	j.Seq = q.seq
	j.State = job.StateQueued
	heap.Push(&q.items, j)
	q.mu.Unlock()

	// Coalesced wake: one pending signal is enough, the scheduler
	// drains the queue after each wake.
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the next job to dispatch, or false if the
// queue is empty.
func (q *Queue) Pop() (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*job.Job), true
}

// Wake returns a channel that receives a signal after each Push.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// CancelWhere removes every queued job matching pred, marks it
// cancelled, and rejects its handle with ErrCancelled. It returns the
// number of jobs cancelled. Jobs already popped for dispatch are not
// affected.
func (q *Queue) CancelWhere(pred func(*job.Job) bool) int {
	return q.reject(pred, ErrCancelled, job.StateCancelled)
}

// Drain removes all queued jobs and rejects their handles with cause.
// Used during shutdown so no handle is left unsettled.
func (q *Queue) Drain(cause error) int {
	return q.reject(func(*job.Job) bool { return true }, cause, job.StateCancelled)
}

// reject partitions the heap rather than removing mid-scan:
// heap.Remove can sift the element swapped into the hole upward past
// already-visited indices, hiding a matching job from the sweep.
func (q *Queue) reject(pred func(*job.Job) bool, cause error, state job.State) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	kept := items[:0]
	var removed []*job.Job
	for _, j := range items {
		if pred(j) {
			removed = append(removed, j)
		} else {
			kept = append(kept, j)
		}
	}
	if len(removed) == 0 {
		return 0
	}
	for i := len(kept); i < len(items); i++ {
		items[i] = nil
	}
	q.items = kept
	heap.Init(&q.items)

	for _, j := range removed {
		j.State = state
		j.Handle().Reject(cause)
	}
	return len(removed)
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Snapshot returns a copy of the queued jobs for inspection. The slice
// is safe to iterate; the jobs themselves still belong to the queue.
func (q *Queue) Snapshot() []*job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*job.Job, len(q.items))
	copy(out, q.items)
	return out
}

// jobHeap implements heap.Interface with Job.Before as the order.
type jobHeap []*job.Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*job.Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
