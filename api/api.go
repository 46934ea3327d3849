// Package api provides the HTTP facade over the result cache and the
// scheduler's control surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/scheduler"
	"github.com/pagewatch/pagewatch/store"
)

// ReloadFunc re-reads the job configuration and applies it to the
// scheduler. Wired by the engine; nil disables the reload endpoint.
type ReloadFunc func(ctx context.Context) error

// Option configures the API.
type Option func(*API)

// WithLogger sets the API's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithReload enables POST /v1/reload.
func WithReload(fn ReloadFunc) Option {
	return func(a *API) { a.reload = fn }
}

// API serves the read-only result endpoints and the scheduler controls.
type API struct {
	store  store.Store
	sched  *scheduler.Scheduler
	logger *slog.Logger
	reload ReloadFunc
}

// New creates an API over the given store and scheduler.
func New(st store.Store, sched *scheduler.Scheduler, opts ...Option) *API {
	a := &API{
		store:  st,
		sched:  sched,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", a.listJobs)
		r.Get("/jobs/{jobID}", a.getJob)
		r.Post("/jobs/{jobID}/reset", a.resetJob)

		r.Get("/results", a.listResults)
		r.Get("/results/{jobID}", a.getResult)
		r.Get("/results/{jobID}/payload", a.getResultPayload)

		r.Get("/stats", a.stats)
		r.Post("/tick", a.tick)
		r.Post("/reload", a.reloadConfig)
	})
	return r
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("response encode failed", "error", err)
	}
}

// writeError maps domain sentinels onto HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pagewatch.ErrJobNotFound),
		errors.Is(err, pagewatch.ErrResultNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pagewatch.ErrInvalidDescriptor):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
