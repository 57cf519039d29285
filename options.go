package pacer

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/pacer/backoff"
	"github.com/xraph/pacer/hook"
	"github.com/xraph/pacer/middleware"
)

// Option configures a Pacer at construction time.
type Option func(*Pacer)

// WithConfig replaces the whole configuration. Individual With* options
// applied after it still override single fields.
func WithConfig(cfg Config) Option {
	return func(p *Pacer) { p.cfg = cfg }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pacer) { p.logger = logger }
}

// WithMinSpacing sets the minimum interval between the end of one
// successful backend call and the start of the next dispatch.
func WithMinSpacing(d time.Duration) Option {
	return func(p *Pacer) { p.cfg.MinSpacing = d }
}

// WithMaxRetries sets the default retry count per dispatch.
func WithMaxRetries(n int) Option {
	return func(p *Pacer) { p.cfg.MaxRetries = n }
}

// WithRetryBackoff sets the fixed delay between retries. Shorthand for
// WithBackoff(backoff.NewConstant(d)).
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Pacer) { p.bo = backoff.NewConstant(d) }
}

// WithBackoff sets the default retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(p *Pacer) { p.bo = s }
}

// WithShutdownTimeout bounds how long Stop waits for the in-flight
// dispatch before cancelling it.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pacer) { p.cfg.ShutdownTimeout = d }
}

// WithMiddleware appends dispatch middleware. User middleware runs
// inside the built-in recover/logging/timeout layers, closest to the
// invoker.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Pacer) { p.userMW = append(p.userMW, mws...) }
}

// WithExtension registers a lifecycle extension.
func WithExtension(exts ...hook.Extension) Option {
	return func(p *Pacer) { p.extensions = append(p.extensions, exts...) }
}

// WithMeterProvider enables dispatch metrics through the given
// provider instead of the OTel global.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pacer) { p.meterProvider = mp }
}

// WithTracerProvider enables dispatch tracing through the given
// provider instead of the OTel global.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pacer) { p.tracerProvider = tp }
}
