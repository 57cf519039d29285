// Package pacer coordinates calls to a single rate-limited backend from an
// interactive caller that may submit work faster than the backend allows.
//
// The core is an admission/scheduling loop: submitted jobs wait in a
// priority queue (higher priority first, FIFO within a priority), a
// cooldown gate enforces a minimum spacing between successful calls, and a
// single-flight scheduler dispatches at most one job at a time through a
// middleware chain and a bounded retry wrapper. Queued jobs can be
// cancelled or superseded before dispatch; a live status feed reports
// Idle/Waiting/Dispatching transitions (with a 1Hz countdown while
// waiting) for UI consumption.
//
// Pacer is a library, not a service. The backend is reached through a
// caller-supplied invoke.Invoker; pacer itself never opens a socket and
// keeps no durable state.
//
//	inv := invoke.NewHTTPInvoker(endpoint, nil)
//	p, err := pacer.New(inv,
//		pacer.WithMinSpacing(21*time.Second),
//		pacer.WithMaxRetries(2),
//	)
//	if err != nil { ... }
//	_ = p.Start(ctx)
//	defer p.Stop(context.Background())
//
//	h := p.Submit(ctx, payload, job.WithPriority(5))
//	select {
//	case <-h.Done():
//		result, err := h.Result()
//		...
//	case <-ctx.Done():
//	}
package pacer
