package engine

import (
	"log/slog"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/middleware"
	"github.com/pagewatch/pagewatch/render"
	"github.com/pagewatch/pagewatch/scheduler"
	"github.com/pagewatch/pagewatch/store"
)

// Option configures the engine at construction time.
type Option func(*Engine)

// WithConfig replaces the whole engine configuration.
func WithConfig(cfg pagewatch.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithStore sets the backing store. Required.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRenderer sets the renderer executing page loads. Required.
func WithRenderer(r render.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithLogger sets the logger shared by all subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHooks sets a pre-populated hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(e *Engine) { e.hooks = r }
}

// WithJobsFile sets the JSON jobs file loaded on Start and on reload.
func WithJobsFile(path string) Option {
	return func(e *Engine) { e.jobsPath = path }
}

// WithMiddleware appends attempt middleware inside the default recover and
// logging layers.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(e *Engine) { e.userMW = append(e.userMW, mw...) }
}

// WithSchedulerOptions passes extra options to the scheduler, e.g. a
// custom backoff strategy.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(e *Engine) { e.userOpts = append(e.userOpts, opts...) }
}
