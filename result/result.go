// Package result defines the result cache contract: the latest completed
// run per job, as exposed to the API facade. The cache is not an audit
// log — each new completion atomically replaces the previous record.
package result

import (
	"context"
	"time"

	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// Record is the latest outcome for one job. At most one Record exists per
// JobID; new completions replace the old one atomically.
type Record struct {
	JobID   id.JobID `json:"job_id"`
	JobName string   `json:"job_name"`
	Target  string   `json:"target"`

	RunID   id.RunID  `json:"run_id"`
	Attempt int       `json:"attempt"`
	State   job.State `json:"state"`

	// Payload and ContentType are present only for succeeded runs.
	Payload     []byte `json:"payload,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// LastError is present only for failed, timed-out, or exhausted runs.
	LastError string `json:"last_error,omitempty"`

	// ConsecutiveFailures at the time the record was written.
	ConsecutiveFailures int `json:"consecutive_failures"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

// FromRun builds a Record from a completed run.
func FromRun(r *job.Run, consecutiveFailures int) *Record {
	return &Record{
		JobID:               r.JobID,
		JobName:             r.JobName,
		Target:              r.Target,
		RunID:               r.ID,
		Attempt:             r.Attempt,
		State:               r.State,
		Payload:             r.Payload,
		ContentType:         r.ContentType,
		LastError:           r.LastError,
		ConsecutiveFailures: consecutiveFailures,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		RecordedAt:          time.Now().UTC(),
	}
}

// Store defines the persistence contract for the result cache.
type Store interface {
	// RecordResult atomically replaces the record for the run's job.
	// Concurrent calls for the same job never produce a record mixing
	// fields from two runs.
	RecordResult(ctx context.Context, rec *Record) error

	// GetResult retrieves the latest record for a job.
	GetResult(ctx context.Context, jobID id.JobID) (*Record, error)

	// ListResults returns all records ordered by job ID ascending.
	ListResults(ctx context.Context) ([]*Record, error)

	// DeleteResult removes the record for a job, if any.
	DeleteResult(ctx context.Context, jobID id.JobID) error
}
