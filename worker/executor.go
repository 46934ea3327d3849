package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/middleware"
	"github.com/pagewatch/pagewatch/render"
)

var errRenderTimeout = errors.New("worker: render deadline exceeded")

// Submission asks the pool to execute one attempt of a job.
type Submission struct {
	Descriptor *job.Descriptor
	Attempt    int
}

// Executor turns a Submission into a completed Run. It builds the run
// record, drives the render worker through the middleware chain, and maps
// the render outcome onto the run state.
type Executor struct {
	renderer render.Renderer
	hooks    *hook.Registry
	logger   *slog.Logger
	mw       []middleware.Middleware
}

// NewExecutor creates an executor. The middleware chain is applied around
// every attempt in the order given.
func NewExecutor(renderer render.Renderer, hooks *hook.Registry, logger *slog.Logger, mw ...middleware.Middleware) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		renderer: renderer,
		hooks:    hooks,
		logger:   logger,
		mw:       mw,
	}
}

// NewWorker creates a render worker bound to the executor's renderer.
// Each pool slot owns exactly one.
func (e *Executor) NewWorker() *render.Worker {
	return render.NewWorker(e.renderer, e.logger)
}

// Execute runs a single attempt to completion. The returned run is always
// terminal. recycle reports whether the slot's render worker should be
// recycled before reuse: true after a timeout, and true when the attempt
// aborted before the renderer produced an outcome (a recovered panic).
func (e *Executor) Execute(ctx context.Context, w *render.Worker, sub Submission) (run *job.Run, recycle bool) {
	d := sub.Descriptor
	run = job.NewRun(d, sub.Attempt)
	run.State = job.StateRunning
	run.StartedAt = time.Now().UTC()

	if e.hooks != nil {
		e.hooks.EmitAttemptStarted(ctx, run)
	}

	var out render.Outcome
	terminal := func(ctx context.Context) error {
		out = w.Execute(ctx, d.Target, d.Timeout)
		switch out.Status {
		case render.StatusTimedOut:
			return errRenderTimeout
		case render.StatusFailed:
			return out.Err
		}
		return nil
	}

	start := time.Now()
	err := middleware.Chain(e.mw...)(ctx, run, terminal)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	run.CompletedAt = &now

	switch {
	case err == nil && out.Status == render.StatusSucceeded:
		run.State = job.StateSucceeded
		run.Payload = out.Content.Body
		run.ContentType = out.Content.ContentType
		if e.hooks != nil {
			e.hooks.EmitAttemptCompleted(ctx, run, elapsed)
		}
	case out.Status == render.StatusTimedOut:
		run.State = job.StateTimedOut
		run.LastError = errRenderTimeout.Error()
		recycle = true
		if e.hooks != nil {
			e.hooks.EmitAttemptFailed(ctx, run, err)
		}
	default:
		run.State = job.StateFailed
		if err != nil {
			run.LastError = err.Error()
		} else {
			run.LastError = "worker: attempt aborted"
		}
		// Recycle when the renderer panicked, or when the terminal never
		// finished (a middleware-level panic leaves the outcome empty).
		// Either way the slot's worker may hold poisoned renderer state.
		recycle = out.Status == "" || errors.Is(err, render.ErrRenderPanic)
		if e.hooks != nil {
			e.hooks.EmitAttemptFailed(ctx, run, err)
		}
	}
	return run, recycle
}
