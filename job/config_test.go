package job_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/job"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`{
		"jobs": [
			{"name": "front-page", "target": "https://example.com", "cadence": "@every 60s"},
			{"name": "pricing", "target": "https://example.com/pricing", "cadence": "*/5 * * * *",
			 "max_attempts": 5, "backoff_base": "2s", "timeout": "30s"}
		]
	}`)

	ds, err := job.ParseConfig(data, job.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(ds))
	}

	if ds[0].MaxAttempts != 3 {
		t.Errorf("default max_attempts = %d, want 3", ds[0].MaxAttempts)
	}
	if ds[1].MaxAttempts != 5 {
		t.Errorf("max_attempts = %d, want 5", ds[1].MaxAttempts)
	}
	if ds[1].BackoffBase != 2*time.Second {
		t.Errorf("backoff_base = %v, want 2s", ds[1].BackoffBase)
	}
	if ds[1].Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", ds[1].Timeout)
	}
	if ds[0].ID.IsNil() {
		t.Error("descriptor ID not assigned")
	}
}

func TestParseConfigRejectsInvalidEntriesIndividually(t *testing.T) {
	data := []byte(`{
		"jobs": [
			{"name": "good", "target": "https://example.com", "cadence": "@every 10s"},
			{"name": "bad-cadence", "target": "https://example.com", "cadence": "not a cadence"},
			{"name": "", "target": "https://example.com", "cadence": "@every 10s"}
		]
	}`)

	ds, err := job.ParseConfig(data, job.DefaultOptions())
	if err == nil {
		t.Fatal("expected error for invalid entries")
	}
	if !errors.Is(err, pagewatch.ErrInvalidDescriptor) {
		t.Errorf("error = %v, want ErrInvalidDescriptor", err)
	}
	if len(ds) != 1 || ds[0].Name != "good" {
		t.Fatalf("valid entries should survive: got %d", len(ds))
	}
}

func TestParseConfigRejectsDuplicateNames(t *testing.T) {
	data := []byte(`{
		"jobs": [
			{"name": "dup", "target": "https://a.example.com", "cadence": "@every 10s"},
			{"name": "dup", "target": "https://b.example.com", "cadence": "@every 10s"}
		]
	}`)

	ds, err := job.ParseConfig(data, job.DefaultOptions())
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	if len(ds) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(ds))
	}
}

func TestNewDescriptorValidation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		cadence string
		opts    []job.Option
		wantErr bool
	}{
		{"ok interval", "https://example.com", "@every 30s", nil, false},
		{"ok cron", "https://example.com", "0 * * * *", nil, false},
		{"bad cadence", "https://example.com", "@sometimes", nil, true},
		{"empty target", "", "@every 30s", nil, true},
		{"zero attempts", "https://example.com", "@every 30s", []job.Option{job.WithMaxAttempts(0)}, true},
		{"zero timeout", "https://example.com", "@every 30s", []job.Option{job.WithTimeout(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := job.NewDescriptor(tt.name, tt.target, tt.cadence, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, pagewatch.ErrInvalidDescriptor) {
				t.Errorf("error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestRunStates(t *testing.T) {
	d, err := job.NewDescriptor("r", "https://example.com", "@every 10s")
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	r := job.NewRun(d, 1)
	if r.State != job.StatePending {
		t.Errorf("new run state = %s, want pending", r.State)
	}
	if r.JobID != d.ID {
		t.Error("run not linked to descriptor")
	}

	for _, s := range []job.State{job.StateSucceeded, job.StateFailed, job.StateTimedOut, job.StateExhausted} {
		if !s.Terminal() {
			t.Errorf("state %s should be terminal", s)
		}
	}
	for _, s := range []job.State{job.StatePending, job.StateRunning} {
		if s.Terminal() {
			t.Errorf("state %s should not be terminal", s)
		}
	}
}
