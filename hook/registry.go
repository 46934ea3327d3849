package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// Named entry types pair a hook implementation with the hook name captured
// at registration time. This avoids type-asserting back to Hook inside the
// emit methods.
type attemptStartedEntry struct {
	name string
	hook AttemptStarted
}

type attemptCompletedEntry struct {
	name string
	hook AttemptCompleted
}

type attemptFailedEntry struct {
	name string
	hook AttemptFailed
}

type jobExhaustedEntry struct {
	name string
	hook JobExhausted
}

type tickCompletedEntry struct {
	name string
	hook TickCompleted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to them.
// It type-caches hooks at registration time so emit calls iterate only
// over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	attemptStarted   []attemptStartedEntry
	attemptCompleted []attemptCompletedEntry
	attemptFailed    []attemptFailedEntry
	jobExhausted     []jobExhaustedEntry
	tickCompleted    []tickCompletedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(AttemptStarted); ok {
		r.attemptStarted = append(r.attemptStarted, attemptStartedEntry{name, hk})
	}
	if hk, ok := h.(AttemptCompleted); ok {
		r.attemptCompleted = append(r.attemptCompleted, attemptCompletedEntry{name, hk})
	}
	if hk, ok := h.(AttemptFailed); ok {
		r.attemptFailed = append(r.attemptFailed, attemptFailedEntry{name, hk})
	}
	if hk, ok := h.(JobExhausted); ok {
		r.jobExhausted = append(r.jobExhausted, jobExhaustedEntry{name, hk})
	}
	if hk, ok := h.(TickCompleted); ok {
		r.tickCompleted = append(r.tickCompleted, tickCompletedEntry{name, hk})
	}
	if hk, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, hk})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitAttemptStarted notifies all hooks that implement AttemptStarted.
func (r *Registry) EmitAttemptStarted(ctx context.Context, run *job.Run) {
	for _, e := range r.attemptStarted {
		if err := e.hook.OnAttemptStarted(ctx, run); err != nil {
			r.logHookError("OnAttemptStarted", e.name, err)
		}
	}
}

// EmitAttemptCompleted notifies all hooks that implement AttemptCompleted.
func (r *Registry) EmitAttemptCompleted(ctx context.Context, run *job.Run, elapsed time.Duration) {
	for _, e := range r.attemptCompleted {
		if err := e.hook.OnAttemptCompleted(ctx, run, elapsed); err != nil {
			r.logHookError("OnAttemptCompleted", e.name, err)
		}
	}
}

// EmitAttemptFailed notifies all hooks that implement AttemptFailed.
func (r *Registry) EmitAttemptFailed(ctx context.Context, run *job.Run, runErr error) {
	for _, e := range r.attemptFailed {
		if err := e.hook.OnAttemptFailed(ctx, run, runErr); err != nil {
			r.logHookError("OnAttemptFailed", e.name, err)
		}
	}
}

// EmitJobExhausted notifies all hooks that implement JobExhausted.
func (r *Registry) EmitJobExhausted(ctx context.Context, jobID id.JobID, jobName string) {
	for _, e := range r.jobExhausted {
		if err := e.hook.OnJobExhausted(ctx, jobID, jobName); err != nil {
			r.logHookError("OnJobExhausted", e.name, err)
		}
	}
}

// EmitTickCompleted notifies all hooks that implement TickCompleted.
func (r *Registry) EmitTickCompleted(ctx context.Context, due, dispatched int) {
	for _, e := range r.tickCompleted {
		if err := e.hook.OnTickCompleted(ctx, due, dispatched); err != nil {
			r.logHookError("OnTickCompleted", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never propagate into the
// scheduler or the worker pool.
func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}
