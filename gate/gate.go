// Package gate enforces the minimum spacing between successive calls to
// the rate-limited backend. The gate tracks the time of the last
// successful call; Acquire blocks until the spacing has elapsed and
// drives an observable once-per-second countdown while it waits.
package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate is the cooldown between dispatches.
//
// Only one caller waits in Acquire at a time; the scheduler's
// single-flight loop makes that structurally true, so the gate locks
// only its bookkeeping, not the wait itself. Failed invocations never
// advance the cooldown: the next dispatch is still measured from the
// previous success, which may already be satisfied.
type Gate struct {
	mu          sync.Mutex
	minSpacing  time.Duration
	lastSuccess time.Time
	hasSuccess  bool

	now    func() time.Time
	onTick func(remaining time.Duration)
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithTickFunc sets the countdown observer. It is called with the
// remaining wait at most once per second while Acquire is blocked, and
// with zero when the wait ends.
func WithTickFunc(fn func(remaining time.Duration)) Option {
	return func(g *Gate) { g.onTick = fn }
}

// New creates a Gate with the given minimum spacing. A non-positive
// spacing disables the cooldown entirely.
func New(minSpacing time.Duration, opts ...Option) *Gate {
	g := &Gate{
		minSpacing: minSpacing,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Remaining returns how long Acquire would block right now. Zero means
// the gate is open: either the spacing has elapsed or no call has ever
// succeeded.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked()
}

func (g *Gate) remainingLocked() time.Duration {
	if !g.hasSuccess || g.minSpacing <= 0 {
		return 0
	}
	rem := g.minSpacing - g.now().Sub(g.lastSuccess)
	if rem < 0 {
		return 0
	}
	return rem
}

// Acquire blocks until the minimum spacing since the last successful
// call has elapsed. It returns immediately if the gate has never been
// passed. The context cancels the wait.
//
// The caller must call RecordSuccess after a successful invocation;
// Acquire itself never advances the cooldown.
func (g *Gate) Acquire(ctx context.Context) error {
	rem := g.Remaining()
	if rem <= 0 {
		return nil
	}

	// Each wait gets a fresh 1Hz limiter so its first countdown tick is
	// never swallowed by the tail of the previous wait.
	ticks := rate.NewLimiter(1, 1)
	g.emit(ticks, rem)

	deadline := time.NewTimer(rem)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// RecordSuccess cannot run mid-wait (single flight), but
			// recompute anyway so the countdown tracks wall time.
			if cur := g.Remaining(); cur > 0 {
				g.emit(ticks, cur)
			}
		case <-deadline.C:
			g.emit(ticks, 0)
			return nil
		}
	}
}

// RecordSuccess stamps the current time as the last successful call.
// Call it exactly once after each successful invocation; never after a
// failure.
func (g *Gate) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSuccess = g.now()
	g.hasSuccess = true
}

// MinSpacing returns the configured spacing.
func (g *Gate) MinSpacing() time.Duration { return g.minSpacing }

// SetTickFunc replaces the countdown observer. The scheduler wires
// itself in at startup; call before the first Acquire.
func (g *Gate) SetTickFunc(fn func(remaining time.Duration)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTick = fn
}

func (g *Gate) emit(ticks *rate.Limiter, remaining time.Duration) {
	g.mu.Lock()
	fn := g.onTick
	g.mu.Unlock()

	if fn == nil {
		return
	}
	// The zero tick always goes through so observers see the wait end.
	if remaining > 0 && !ticks.Allow() {
		return
	}
	fn(remaining)
}
