// Package engine wires all pagewatch subsystems together: store, renderer,
// hook registry, middleware chain, worker pool, scheduler, and the HTTP
// facade. It sits above all subsystem packages and below the application
// layer.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/api"
	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/middleware"
	"github.com/pagewatch/pagewatch/render"
	"github.com/pagewatch/pagewatch/scheduler"
	"github.com/pagewatch/pagewatch/store"
	"github.com/pagewatch/pagewatch/worker"
)

// Engine owns the assembled pagewatch runtime.
type Engine struct {
	cfg      pagewatch.Config
	store    store.Store
	renderer render.Renderer
	logger   *slog.Logger
	hooks    *hook.Registry

	pool  *worker.Pool
	sched *scheduler.Scheduler
	api   *api.API

	jobsPath string
	userMW   []middleware.Middleware
	userOpts []scheduler.Option

	started bool
}

// New assembles an engine. A store and a renderer are required; everything
// else has defaults from pagewatch.DefaultConfig.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    pagewatch.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, pagewatch.ErrNoStore
	}
	if e.renderer == nil {
		return nil, pagewatch.ErrNoRenderer
	}
	if e.hooks == nil {
		e.hooks = hook.NewRegistry(e.logger)
	}

	mw := append([]middleware.Middleware{
		middleware.Recover(e.logger),
		middleware.Logging(e.logger),
	}, e.userMW...)
	executor := worker.NewExecutor(e.renderer, e.hooks, e.logger, mw...)

	// The pool's completion callback needs the scheduler, which needs the
	// pool as its dispatcher. The closure breaks the construction cycle:
	// the pool does not run until Start, by which time sched is set.
	var sched *scheduler.Scheduler
	e.pool = worker.NewPool(executor,
		worker.WithConcurrency(e.cfg.Concurrency),
		worker.WithLogger(e.logger),
		worker.WithCompletion(func(run *job.Run) { sched.HandleCompletion(run) }),
	)

	schedOpts := append([]scheduler.Option{
		scheduler.WithTickInterval(e.cfg.TickInterval),
		scheduler.WithLeaseTTL(e.cfg.LeaseTTL),
		scheduler.WithLogger(e.logger),
		scheduler.WithHooks(e.hooks),
	}, e.userOpts...)
	sched = scheduler.New(e.store, e.pool, schedOpts...)
	e.sched = sched

	apiOpts := []api.Option{api.WithLogger(e.logger)}
	if e.jobsPath != "" {
		apiOpts = append(apiOpts, api.WithReload(e.ReloadJobs))
	}
	e.api = api.New(e.store, e.sched, apiOpts...)
	return e, nil
}

// Start migrates the store, loads the jobs file if configured, and
// launches the pool and the tick loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return nil
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if err := e.store.Migrate(ctx); err != nil {
		return errors.Join(pagewatch.ErrMigrationFailed, err)
	}
	if e.jobsPath != "" {
		if err := e.ReloadJobs(ctx); err != nil {
			return err
		}
	}
	e.pool.Start()
	e.sched.Start()
	e.started = true
	e.logger.Info("engine started", "concurrency", e.cfg.Concurrency)
	return nil
}

// Stop drains the scheduler and the pool, bounded by ShutdownTimeout
// unless the caller's context expires first.
func (e *Engine) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := e.sched.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.pool.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	e.hooks.EmitShutdown(ctx)
	if r, ok := e.renderer.(render.Recycler); ok {
		r.Recycle()
	}
	e.started = false
	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

// ReloadJobs re-reads the configured jobs file and swaps the descriptor
// set. Invalid entries are rejected; an unreadable file aborts the reload
// and keeps the current set.
func (e *Engine) ReloadJobs(ctx context.Context) error {
	ds, err := job.LoadFile(e.jobsPath, e.descriptorDefaults())
	if err != nil && len(ds) == 0 {
		return err
	}
	if err != nil {
		// Partial load: valid entries proceed, rejects are logged.
		e.logger.Warn("jobs file partially loaded", "error", err)
	}
	return e.sched.Reload(ctx, ds)
}

func (e *Engine) descriptorDefaults() job.Options {
	return job.Options{
		MaxAttempts:    e.cfg.DefaultMaxAttempts,
		BackoffBase:    e.cfg.DefaultBackoffBase,
		BackoffCeiling: e.cfg.DefaultBackoffCeiling,
		Timeout:        e.cfg.DefaultTimeout,
	}
}

// TickNow runs one scheduling pass immediately. Used by externally
// triggered tick mode, where no internal loop runs.
func (e *Engine) TickNow(ctx context.Context) (int, error) {
	return e.sched.Tick(ctx, time.Now())
}

// Handler returns the HTTP facade.
func (e *Engine) Handler() http.Handler { return e.api.Handler() }

// Scheduler returns the scheduler for direct control.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Pool returns the worker pool.
func (e *Engine) Pool() *worker.Pool { return e.pool }

// Store returns the backing store. The caller owns its lifecycle.
func (e *Engine) Store() store.Store { return e.store }

// Hooks returns the hook registry for late registration.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }
