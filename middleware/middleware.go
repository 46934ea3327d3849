// Package middleware provides composable middleware for render attempts.
// Middleware wraps attempt execution synchronously and can modify it
// (recover from panics, log, record metrics, add tracing).
package middleware

import (
	"context"

	"github.com/pagewatch/pagewatch/job"
)

// Handler is the terminal function that executes the render attempt.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the run being attempted, and the next handler to call.
// Middleware MUST call next to continue the chain (unless short-circuiting
// on error).
type Middleware func(ctx context.Context, r *job.Run, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the list
// is the outermost wrapper.
//
// Example: Chain(logging, recovery) executes as logging → recovery → handler.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, r *job.Run, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, r, prev)
			}
		}
		return h(ctx)
	}
}
