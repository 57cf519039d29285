package job

import "sync"

// Handle is the completion promise for a submitted job. It settles
// exactly once, either resolved with the backend result or rejected
// with the terminal error. Await settlement via Done:
//
//	<-h.Done()
//	result, err := h.Result()
//
// Handle is safe for concurrent use.
type Handle struct {
	mu         sync.Mutex
	done       chan struct{}
	result     []byte
	err        error
	settled    bool
	generation uint64
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Done returns a channel closed when the handle settles.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the resolved payload and terminal error. It is only
// meaningful after Done is closed; before settlement both are zero.
func (h *Handle) Result() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Err returns the terminal error, or nil if the handle resolved (or has
// not settled yet).
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Generation returns the caller-supplied supersession tag carried by
// the job, so result consumers can discard stale settlements.
func (h *Handle) Generation() uint64 { return h.generation }

// Resolve settles the handle with a successful result. It reports
// whether this call settled the handle; later calls are no-ops.
func (h *Handle) Resolve(result []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.settled {
		return false
	}
	h.settled = true
	h.result = result
	close(h.done)
	return true
}

// Reject settles the handle with a terminal error. It reports whether
// this call settled the handle; later calls are no-ops.
func (h *Handle) Reject(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.settled {
		return false
	}
	h.settled = true
	h.err = err
	close(h.done)
	return true
}
