package job

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
)

// Descriptor defines one schedulable unit of render work. Descriptors are
// immutable after creation: configuration reload replaces them wholesale
// rather than mutating fields in place.
type Descriptor struct {
	pagewatch.Entity

	ID   id.JobID `json:"id"`
	Name string   `json:"name"`

	// Target is the opaque render target, typically a URL. The core never
	// interprets it beyond passing it to the renderer.
	Target string `json:"target"`

	// Cadence is either a 5-field cron expression ("*/5 * * * *") or an
	// interval descriptor ("@every 60s").
	Cadence string `json:"cadence"`

	// MaxAttempts is the retry budget: after this many consecutive failed
	// or timed-out attempts the job becomes exhausted.
	MaxAttempts int `json:"max_attempts"`

	// BackoffBase is the delay before the first retry; subsequent retries
	// double it up to BackoffCeiling.
	BackoffBase time.Duration `json:"backoff_base"`

	// BackoffCeiling caps the retry delay. Zero means uncapped.
	BackoffCeiling time.Duration `json:"backoff_ceiling"`

	// Timeout is the hard deadline for a single render attempt.
	Timeout time.Duration `json:"timeout"`
}

// cadenceParser supports standard 5-field cron and descriptors like "@every 30s".
var cadenceParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseCadence parses a cadence expression and returns its schedule.
func ParseCadence(expr string) (cronlib.Schedule, error) {
	return cadenceParser.Parse(expr)
}

// NewDescriptor creates a validated Descriptor with a fresh job ID.
func NewDescriptor(name, target, cadence string, opts ...Option) (*Descriptor, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Descriptor{
		Entity:         pagewatch.NewEntity(),
		ID:             id.NewJobID(),
		Name:           name,
		Target:         target,
		Cadence:        cadence,
		MaxAttempts:    o.MaxAttempts,
		BackoffBase:    o.BackoffBase,
		BackoffCeiling: o.BackoffCeiling,
		Timeout:        o.Timeout,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the descriptor for configuration errors. Invalid
// descriptors are rejected at load time and never scheduled.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", pagewatch.ErrInvalidDescriptor)
	}
	if d.Target == "" {
		return fmt.Errorf("%w: job %q: missing target", pagewatch.ErrInvalidDescriptor, d.Name)
	}
	if d.Cadence == "" {
		return fmt.Errorf("%w: job %q: missing cadence", pagewatch.ErrInvalidDescriptor, d.Name)
	}
	if _, err := ParseCadence(d.Cadence); err != nil {
		return fmt.Errorf("%w: job %q: cadence %q: %v", pagewatch.ErrInvalidDescriptor, d.Name, d.Cadence, err)
	}
	if d.MaxAttempts < 1 {
		return fmt.Errorf("%w: job %q: max_attempts must be >= 1", pagewatch.ErrInvalidDescriptor, d.Name)
	}
	if d.BackoffBase < 0 {
		return fmt.Errorf("%w: job %q: negative backoff_base", pagewatch.ErrInvalidDescriptor, d.Name)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: job %q: timeout must be > 0", pagewatch.ErrInvalidDescriptor, d.Name)
	}
	return nil
}
