package api

import (
	"net/http"

	"github.com/pagewatch/pagewatch/job"
)

func (a *API) listResults(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.ListResults(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, recs)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	jID, err := jobIDParam(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := a.store.GetResult(r.Context(), jID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

// getResultPayload serves the rendered document itself with its original
// content type, so the cache can sit directly behind a proxy or crawler.
func (a *API) getResultPayload(w http.ResponseWriter, r *http.Request) {
	jID, err := jobIDParam(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := a.store.GetResult(r.Context(), jID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if rec.State != job.StateSucceeded || len(rec.Payload) == 0 {
		a.writeJSON(w, http.StatusConflict, errorResponse{
			Error: "no rendered payload: last run " + string(rec.State),
		})
		return
	}
	ct := rec.ContentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Payload); err != nil {
		a.logger.Error("payload write failed", "error", err)
	}
}
