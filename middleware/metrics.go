package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pagewatch/pagewatch/job"
)

// meterName is the instrumentation scope name for pagewatch metrics.
const meterName = "github.com/pagewatch/pagewatch"

// Metrics returns middleware that measures every attempt through the
// global OTel meter: pagewatch.attempt.duration (seconds histogram) and
// pagewatch.attempt.executions (counter), both tagged with job_name and a
// status of "ok" or "error". With no MeterProvider installed the
// instruments are no-ops.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics with an explicit meter, for tests that
// install their own provider.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are built once per middleware. A failed build hands
	// back a noop instrument, so the errors carry no information worth
	// propagating.
	duration, _ := meter.Float64Histogram(
		"pagewatch.attempt.duration",
		metric.WithDescription("Duration of render attempt execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"pagewatch.attempt.executions",
		metric.WithDescription("Total number of render attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, r *job.Run, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_name", r.JobName),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
