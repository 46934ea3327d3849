package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ErrRenderPanic wraps a panic raised inside the renderer. The pool
// recycles the worker's session after one of these.
var ErrRenderPanic = errors.New("render: renderer panicked")

// Worker wraps one renderer session and executes single attempts under a
// hard deadline. Each Execute call is an independent session: the worker
// never carries render state between attempts.
//
// A Worker is owned by exactly one pool slot at a time and must not be
// shared across concurrent attempts.
type Worker struct {
	renderer Renderer
	logger   *slog.Logger
}

// NewWorker creates a Worker over the given renderer.
func NewWorker(renderer Renderer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{renderer: renderer, logger: logger}
}

type renderResult struct {
	content *Content
	err     error
}

// Execute renders target with a strict deadline. If the renderer does not
// complete within timeout the session is cancelled and abandoned, and the
// outcome is TimedOut: Execute itself returns promptly even when the
// engine ignores cancellation and hangs forever.
func (w *Worker) Execute(ctx context.Context, target string, timeout time.Duration) Outcome {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned render can still deliver without leaking
	// the goroutine.
	done := make(chan renderResult, 1)
	go func() {
		// The render runs on its own goroutine, so a panicking engine
		// binding must be caught here or it takes down the process.
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("renderer panicked",
					slog.String("target", target),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				done <- renderResult{err: fmt.Errorf("%w: %v", ErrRenderPanic, rec)}
			}
		}()
		c, err := w.renderer.Render(rctx, target)
		done <- renderResult{content: c, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return TimedOut()
			}
			return Failed(r.err)
		}
		if r.content == nil {
			return Failed(errors.New("render: engine returned no content"))
		}
		return Succeeded(r.content)

	case <-rctx.Done():
		if errors.Is(rctx.Err(), context.Canceled) {
			// Parent cancellation (shutdown), not a render deadline.
			return Failed(rctx.Err())
		}
		w.logger.Warn("render deadline exceeded, abandoning session",
			slog.String("target", target),
			slog.Duration("timeout", timeout),
		)
		return TimedOut()
	}
}

// Recycle resets the underlying renderer session if it supports recycling.
// Called by the pool after timed-out or crashed attempts to stop leaked
// sessions from infecting the next attempt.
func (w *Worker) Recycle() {
	if r, ok := w.renderer.(Recycler); ok {
		r.Recycle()
	}
}
