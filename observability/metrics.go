// Package observability provides a lifecycle hook that records
// system-wide scheduler metrics through OpenTelemetry.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// meterName is the instrumentation scope name for scheduler metrics.
const meterName = "github.com/pagewatch/pagewatch/observability"

// Compile-time interface checks.
var (
	_ hook.Hook             = (*MetricsHook)(nil)
	_ hook.AttemptStarted   = (*MetricsHook)(nil)
	_ hook.AttemptCompleted = (*MetricsHook)(nil)
	_ hook.AttemptFailed    = (*MetricsHook)(nil)
	_ hook.JobExhausted     = (*MetricsHook)(nil)
	_ hook.TickCompleted    = (*MetricsHook)(nil)
)

// MetricsHook records lifecycle counters and histograms via OTel. Register
// it with the hook registry to track attempt rates, failure rates,
// exhaustion events, and tick dispatch volumes. With no global
// MeterProvider configured the instruments are noops.
type MetricsHook struct {
	attemptsStarted   metric.Int64Counter
	attemptsCompleted metric.Int64Counter
	attemptsFailed    metric.Int64Counter
	jobsExhausted     metric.Int64Counter
	tickDispatched    metric.Int64Histogram
}

// NewMetricsHook creates a MetricsHook using the global MeterProvider.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook with the provided meter.
// Use for injecting a specific MeterProvider in tests.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	h := &MetricsHook{}
	// On instrument creation error the OTel API returns noops, so the
	// hook degrades gracefully.
	h.attemptsStarted, _ = meter.Int64Counter(
		"pagewatch.scheduler.attempts_started",
		metric.WithDescription("Render attempts dispatched to the worker pool"),
		metric.WithUnit("{attempt}"),
	)
	h.attemptsCompleted, _ = meter.Int64Counter(
		"pagewatch.scheduler.attempts_completed",
		metric.WithDescription("Render attempts that succeeded"),
		metric.WithUnit("{attempt}"),
	)
	h.attemptsFailed, _ = meter.Int64Counter(
		"pagewatch.scheduler.attempts_failed",
		metric.WithDescription("Render attempts that failed or timed out"),
		metric.WithUnit("{attempt}"),
	)
	h.jobsExhausted, _ = meter.Int64Counter(
		"pagewatch.scheduler.jobs_exhausted",
		metric.WithDescription("Jobs whose retry budget was consumed"),
		metric.WithUnit("{job}"),
	)
	h.tickDispatched, _ = meter.Int64Histogram(
		"pagewatch.scheduler.tick_dispatched",
		metric.WithDescription("Jobs dispatched per scheduler tick"),
		metric.WithUnit("{job}"),
	)
	return h
}

// Name implements hook.Hook.
func (m *MetricsHook) Name() string { return "observability-metrics" }

// OnAttemptStarted implements hook.AttemptStarted.
func (m *MetricsHook) OnAttemptStarted(ctx context.Context, r *job.Run) error {
	m.attemptsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", r.JobName)))
	return nil
}

// OnAttemptCompleted implements hook.AttemptCompleted.
func (m *MetricsHook) OnAttemptCompleted(ctx context.Context, r *job.Run, _ time.Duration) error {
	m.attemptsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", r.JobName)))
	return nil
}

// OnAttemptFailed implements hook.AttemptFailed.
func (m *MetricsHook) OnAttemptFailed(ctx context.Context, r *job.Run, _ error) error {
	m.attemptsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", r.JobName),
		attribute.String("state", string(r.State)),
	))
	return nil
}

// OnJobExhausted implements hook.JobExhausted.
func (m *MetricsHook) OnJobExhausted(ctx context.Context, _ id.JobID, jobName string) error {
	m.jobsExhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", jobName)))
	return nil
}

// OnTickCompleted implements hook.TickCompleted.
func (m *MetricsHook) OnTickCompleted(ctx context.Context, _, dispatched int) error {
	m.tickDispatched.Record(ctx, int64(dispatched))
	return nil
}
