package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagewatch/pagewatch/job"
)

// tracerName is the instrumentation scope name for pagewatch tracing.
const tracerName = "github.com/pagewatch/pagewatch"

// Tracing returns middleware that opens a span around each attempt using
// the global OTel tracer. Spans carry the job and run IDs, the job name,
// and the attempt number; a failed attempt records its error and an Error
// status. With no TracerProvider installed the spans are no-ops.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *job.Run, next Handler) error {
		ctx, span := tracer.Start(ctx, "pagewatch.attempt.execute",
			trace.WithAttributes(
				attribute.String("pagewatch.job.id", r.JobID.String()),
				attribute.String("pagewatch.job.name", r.JobName),
				attribute.String("pagewatch.run.id", r.ID.String()),
				attribute.Int("pagewatch.attempt", r.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
