package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/pacer/job"
)

// tracerName is the instrumentation scope name for pacer tracing.
const tracerName = "github.com/xraph/pacer"

// Tracing returns middleware that wraps each dispatch in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: pacer.job.id, pacer.job.kind,
// pacer.job.priority, pacer.job.retry_count, pacer.job.generation.
// On error, the span status is set to codes.Error with the message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		ctx, span := tracer.Start(ctx, "pacer.dispatch",
			trace.WithAttributes(
				attribute.String("pacer.job.id", j.ID.String()),
				attribute.String("pacer.job.kind", j.Kind),
				attribute.Int("pacer.job.priority", j.Priority),
				attribute.Int("pacer.job.retry_count", j.RetryCount),
				attribute.Int64("pacer.job.generation", int64(j.Generation)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
