package job

import (
	"time"

	"github.com/pagewatch/pagewatch/id"
)

// State represents the lifecycle state of a single run attempt.
type State string

const (
	// StatePending means the attempt is queued in the worker pool.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the attempt.
	StateRunning State = "running"
	// StateSucceeded means the render completed and produced a payload.
	StateSucceeded State = "succeeded"
	// StateFailed means the render returned an error.
	StateFailed State = "failed"
	// StateTimedOut means the render exceeded its deadline and the session
	// was terminated.
	StateTimedOut State = "timed_out"
	// StateExhausted means the retry budget is consumed; the job will not
	// be dispatched again without an explicit reset.
	StateExhausted State = "exhausted"
)

// Terminal reports whether the state is a completed attempt outcome.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateExhausted:
		return true
	default:
		return false
	}
}

// Run is one execution attempt of a job. The worker pool owns a Run while
// it executes; once completed it is handed to the result store and becomes
// immutable.
type Run struct {
	ID      id.RunID `json:"id"`
	JobID   id.JobID `json:"job_id"`
	JobName string   `json:"job_name"`
	Target  string   `json:"target"`

	// Attempt numbers consecutive tries since the last success, 1-indexed.
	Attempt int `json:"attempt"`

	State       State      `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Payload is present only on succeeded runs.
	Payload     []byte `json:"payload,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// LastError is present only on failed or timed-out runs.
	LastError string `json:"last_error,omitempty"`
}

// NewRun creates a pending Run for one attempt of the given descriptor.
func NewRun(d *Descriptor, attempt int) *Run {
	return &Run{
		ID:      id.NewRunID(),
		JobID:   d.ID,
		JobName: d.Name,
		Target:  d.Target,
		Attempt: attempt,
		State:   StatePending,
	}
}
