// Package render defines the rendering capability contract and the session
// worker that executes a single attempt under a hard deadline.
//
// The external rendering engine is opaque to the core: anything that can
// take a target and produce content (a headless browser, a remote rendering
// service, a test fake) satisfies [Renderer]. The [Worker] wraps one
// renderer session and guarantees that Execute never outlives its timeout,
// even when the engine hangs.
package render

import (
	"context"
	"time"
)

// Content is the product of a successful render.
type Content struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	RenderedAt  time.Time `json:"rendered_at"`
}

// Renderer is the capability contract for the external rendering engine.
// Render blocks until the target is rendered, the context is cancelled, or
// the engine fails. Implementations must honor context cancellation on a
// best-effort basis; the Worker enforces the deadline regardless.
type Renderer interface {
	Render(ctx context.Context, target string) (*Content, error)
}

// Recycler is implemented by renderers whose sessions can accumulate state
// (connections, caches, memory). The worker pool calls Recycle after a
// timed-out or crashed attempt instead of propagating the fault.
type Recycler interface {
	Recycle()
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context, target string) (*Content, error)

// Render calls f.
func (f RenderFunc) Render(ctx context.Context, target string) (*Content, error) {
	return f(ctx, target)
}
