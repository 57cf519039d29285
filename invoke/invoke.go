// Package invoke defines the boundary to the rate-limited backend: the
// Invoker interface the core dispatches through, the failure taxonomy
// for invocations, the bounded retry wrapper, and a thin HTTP adapter.
package invoke

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an invocation failure.
type Kind string

const (
	// KindNetwork covers transport-level failures (connection refused,
	// reset, DNS).
	KindNetwork Kind = "network"
	// KindTimeout covers deadline and timeout failures.
	KindTimeout Kind = "timeout"
	// KindServer covers backend-reported failures (5xx, quota refusals).
	KindServer Kind = "server"
)

// Error is a classified invocation failure. All three kinds are
// transient from the core's perspective and subject to the same retry
// policy.
type Error struct {
	Kind Kind
	Err  error
}

// NewError wraps err with a failure kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invoke: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. The second
// return is false for errors that did not come from an invoker.
func KindOf(err error) (Kind, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// Invoker is the single capability the core needs from the backend: one
// request/response call that may fail or take arbitrarily long. The
// result payload is opaque; interpreting its shape (including malformed
// responses) is the caller's concern, never the scheduler's.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, payload []byte) ([]byte, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}
