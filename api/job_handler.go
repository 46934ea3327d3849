package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// jobResponse is a descriptor joined with its live scheduling state.
type jobResponse struct {
	ID                  id.JobID      `json:"id"`
	Name                string        `json:"name"`
	Target              string        `json:"target"`
	Cadence             string        `json:"cadence"`
	MaxAttempts         int           `json:"max_attempts"`
	BackoffBase         time.Duration `json:"backoff_base"`
	BackoffCeiling      time.Duration `json:"backoff_ceiling"`
	Timeout             time.Duration `json:"timeout"`
	NextDueAt           *time.Time    `json:"next_due_at,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Exhausted           bool          `json:"exhausted"`
	InFlight            bool          `json:"in_flight"`
}

func (a *API) toJobResponse(d *job.Descriptor) jobResponse {
	resp := jobResponse{
		ID:             d.ID,
		Name:           d.Name,
		Target:         d.Target,
		Cadence:        d.Cadence,
		MaxAttempts:    d.MaxAttempts,
		BackoffBase:    d.BackoffBase,
		BackoffCeiling: d.BackoffCeiling,
		Timeout:        d.Timeout,
	}
	if st, ok := a.sched.JobState(d.ID); ok {
		if !st.NextDueAt.IsZero() {
			due := st.NextDueAt
			resp.NextDueAt = &due
		}
		resp.ConsecutiveFailures = st.ConsecutiveFailures
		resp.Exhausted = st.Exhausted
		resp.InFlight = st.InFlight
	}
	return resp
}

func jobIDParam(r *http.Request) (id.JobID, error) {
	raw := chi.URLParam(r, "jobID")
	jID, err := id.ParseJobID(raw)
	if err != nil {
		return id.JobID{}, fmt.Errorf("invalid job id %q: %w", raw, err)
	}
	return jID, nil
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	ds, err := a.store.ListDescriptors(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, a.toJobResponse(d))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jID, err := jobIDParam(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	d, err := a.store.GetDescriptor(r.Context(), jID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.toJobResponse(d))
}

func (a *API) resetJob(w http.ResponseWriter, r *http.Request) {
	jID, err := jobIDParam(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := a.sched.ResetJob(r.Context(), jID); err != nil {
		a.writeError(w, err)
		return
	}
	st, _ := a.sched.JobState(jID)
	a.writeJSON(w, http.StatusOK, st)
}

func (a *API) tick(w http.ResponseWriter, r *http.Request) {
	dispatched, err := a.sched.Tick(r.Context(), time.Now())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"dispatched": dispatched})
}

func (a *API) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if a.reload == nil {
		a.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "reload not configured"})
		return
	}
	if err := a.reload(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.sched.Stats())
}
