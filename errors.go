package pacer

import "errors"

var (
	// ErrNoInvoker is returned by New when no backend invoker is supplied.
	ErrNoInvoker = errors.New("pacer: no invoker configured")

	// ErrAlreadyStarted is returned by Start when the pacer is running.
	ErrAlreadyStarted = errors.New("pacer: already started")

	// ErrNotStarted is returned by Stop when Start was never called.
	ErrNotStarted = errors.New("pacer: not started")

	// ErrStopped rejects jobs submitted to, or still queued in, a pacer
	// that has been stopped.
	ErrStopped = errors.New("pacer: stopped")
)
