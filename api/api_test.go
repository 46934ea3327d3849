package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
	"github.com/pagewatch/pagewatch/scheduler"
	"github.com/pagewatch/pagewatch/store/memory"
	"github.com/pagewatch/pagewatch/worker"
)

type nullDispatcher struct{ subs int }

func (d *nullDispatcher) Submit(worker.Submission) bool {
	d.subs++
	return true
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store  *memory.Store
	sched  *scheduler.Scheduler
	server *httptest.Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st := memory.New()
	sched := scheduler.New(st, &nullDispatcher{}, scheduler.WithLogger(discard()))
	opts = append([]Option{WithLogger(discard())}, opts...)
	a := New(st, sched, opts...)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &fixture{store: st, sched: sched, server: srv}
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func seedJob(t *testing.T, f *fixture, name string) *job.Descriptor {
	t.Helper()
	d, err := job.NewDescriptor(name, "https://example.com/"+name, "@every 1m")
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	if err := f.store.PutDescriptor(context.Background(), d); err != nil {
		t.Fatalf("PutDescriptor: %v", err)
	}
	return d
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
}

func TestListAndGetJobs(t *testing.T) {
	f := newFixture(t)
	d := seedJob(t, f, "home")

	resp, body := f.do(t, http.MethodGet, "/v1/jobs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var jobs []jobResponse
	if err := json.Unmarshal(body, &jobs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "home" {
		t.Fatalf("jobs = %+v", jobs)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/jobs/"+d.ID.String())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d body=%s", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/jobs/not-an-id")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d, want 400", resp.StatusCode)
	}
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t)
	ghost, _ := job.NewDescriptor("ghost", "https://example.com/x", "@every 1m")
	resp, _ := f.do(t, http.MethodGet, "/v1/jobs/"+ghost.ID.String())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResultEndpoints(t *testing.T) {
	f := newFixture(t)
	d := seedJob(t, f, "rendered")

	resp, _ := f.do(t, http.MethodGet, "/v1/results/"+d.ID.String())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty cache status = %d, want 404", resp.StatusCode)
	}

	run := job.NewRun(d, 1)
	run.State = job.StateSucceeded
	run.Payload = []byte("<html>cached</html>")
	run.ContentType = "text/html; charset=utf-8"
	if err := f.store.RecordResult(context.Background(), result.FromRun(run, 0)); err != nil {
		t.Fatal(err)
	}

	resp, body := f.do(t, http.MethodGet, "/v1/results/"+d.ID.String())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rec result.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.State != job.StateSucceeded || rec.JobName != "rendered" {
		t.Fatalf("record = %+v", rec)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/results/"+d.ID.String()+"/payload")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payload status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if string(body) != "<html>cached</html>" {
		t.Fatalf("payload = %q", body)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/results")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var recs []result.Record
	if err := json.Unmarshal(body, &recs); err != nil {
		t.Fatalf("unmarshal list: %v body=%s", err, body)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d", len(recs))
	}
}

func TestPayloadUnavailableForFailedRun(t *testing.T) {
	f := newFixture(t)
	d := seedJob(t, f, "broken")
	run := job.NewRun(d, 1)
	run.State = job.StateFailed
	run.LastError = "boom"
	if err := f.store.RecordResult(context.Background(), result.FromRun(run, 1)); err != nil {
		t.Fatal(err)
	}
	resp, _ := f.do(t, http.MethodGet, "/v1/results/"+d.ID.String()+"/payload")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTickAndStats(t *testing.T) {
	f := newFixture(t)
	seedJob(t, f, "ticked")

	resp, _ := f.do(t, http.MethodPost, "/v1/tick")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tick status = %d", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/v1/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	var stats scheduler.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Jobs != 1 || stats.Ticks != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestResetJob(t *testing.T) {
	f := newFixture(t)
	d := seedJob(t, f, "resettable")

	resp, _ := f.do(t, http.MethodPost, "/v1/jobs/"+d.ID.String()+"/reset")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}

	ghost, _ := job.NewDescriptor("ghost", "https://example.com/x", "@every 1m")
	resp, _ = f.do(t, http.MethodPost, "/v1/jobs/"+ghost.ID.String()+"/reset")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("reset unknown status = %d, want 404", resp.StatusCode)
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/v1/reload")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("unconfigured reload status = %d, want 501", resp.StatusCode)
	}

	called := false
	f2 := newFixture(t, WithReload(func(ctx context.Context) error {
		called = true
		return nil
	}))
	resp, _ = f2.do(t, http.MethodPost, "/v1/reload")
	if resp.StatusCode != http.StatusOK || !called {
		t.Fatalf("reload status = %d called = %v", resp.StatusCode, called)
	}
}
