// Package hook defines the lifecycle hook system for pagewatch.
// Hooks are notified of lifecycle events (attempt started, completed,
// job exhausted, tick finished) and can react to them — logging, metrics,
// alerting.
//
// Each lifecycle event is a separate interface so hooks opt in only to the
// events they care about.
package hook

import (
	"context"
	"time"

	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// AttemptStarted is called when a worker begins executing an attempt.
type AttemptStarted interface {
	OnAttemptStarted(ctx context.Context, r *job.Run) error
}

// AttemptCompleted is called after an attempt succeeds.
type AttemptCompleted interface {
	OnAttemptCompleted(ctx context.Context, r *job.Run, elapsed time.Duration) error
}

// AttemptFailed is called when an attempt fails or times out.
type AttemptFailed interface {
	OnAttemptFailed(ctx context.Context, r *job.Run, err error) error
}

// JobExhausted is called when a job's retry budget is consumed and it
// becomes terminal. It fires inside the scheduler's state lock, so
// implementations must not call back into the Scheduler.
type JobExhausted interface {
	OnJobExhausted(ctx context.Context, jobID id.JobID, jobName string) error
}

// TickCompleted is called after each scheduler tick with the number of
// jobs that were due and the number actually dispatched.
type TickCompleted interface {
	OnTickCompleted(ctx context.Context, due, dispatched int) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
