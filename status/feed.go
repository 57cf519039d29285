// Package status exposes the scheduler's live state to UI consumers:
// a pub/sub feed of Idle/Waiting/Dispatching/Error updates, with a
// once-per-second countdown while the cooldown gate is waiting.
package status

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/pacer/id"
)

// State is the scheduler's externally visible state.
type State string

const (
	// StateIdle means no dispatch is in flight and the gate is open.
	StateIdle State = "idle"
	// StateWaiting means the gate countdown is running before the next
	// dispatch; RemainingSeconds is populated.
	StateWaiting State = "waiting"
	// StateDispatching means a backend invocation (with retries) is in
	// progress.
	StateDispatching State = "dispatching"
	// StateError means the most recent dispatch failed terminally;
	// Err is populated. The scheduler keeps running.
	StateError State = "error"
)

// Update is one emission on the feed.
type Update struct {
	State State

	// RemainingSeconds is the countdown during StateWaiting, rounded
	// up so a subscriber never renders "0s" while still waiting.
	RemainingSeconds int

	// JobID identifies the job being waited for or dispatched, when
	// there is one.
	JobID id.RequestID

	// Err is the terminal failure behind a StateError update.
	Err error

	At time.Time
}

// Feed fans updates out to subscribers. Sends never block: a subscriber
// that stops draining its channel loses updates rather than stalling
// the scheduler. Repeated Waiting updates are capped at 1Hz; state
// transitions always go through.
type Feed struct {
	mu     sync.Mutex
	subs   map[id.SubscriberID]chan Update
	last   Update
	closed bool

	waitTicks *rate.Limiter
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		subs:      make(map[id.SubscriberID]chan Update),
		last:      Update{State: StateIdle, At: time.Now()},
		waitTicks: rate.NewLimiter(1, 1),
	}
}

// Subscribe registers a new subscriber and returns its ID (for
// Unsubscribe) and the update channel. The buffer absorbs bursts; 8 is
// plenty for a feed that emits at most once per second.
func (f *Feed) Subscribe(buffer int) (id.SubscriberID, <-chan Update) {
	if buffer <= 0 {
		buffer = 8
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	sid := id.NewSubscriberID()
	ch := make(chan Update, buffer)
	if !f.closed {
		f.subs[sid] = ch
	} else {
		close(ch)
	}
	return sid, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(sid id.SubscriberID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[sid]; ok {
		delete(f.subs, sid)
		close(ch)
	}
}

// Last returns the most recent update, for poll-style consumers.
func (f *Feed) Last() Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Publish emits an update to all subscribers.
func (f *Feed) Publish(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	// Same-state Waiting updates are countdown ticks; cap at 1Hz.
	if u.State == StateWaiting && f.last.State == StateWaiting && !f.waitTicks.Allow() {
		return
	}
	f.last = u

	for _, ch := range f.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close shuts the feed down, closing all subscriber channels. Publish
// becomes a no-op afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for sid, ch := range f.subs {
		delete(f.subs, sid)
		close(ch)
	}
}

// RemainingSeconds converts a gate wait into whole display seconds,
// rounding up so 1.2s shows as 2, and 0 only once the wait is over.
func RemainingSeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}
