package pagewatch

import "time"

// Config holds engine-level configuration. Per-job knobs (cadence, retry
// budget, timeout) live on the job descriptor; these values act as defaults
// and global bounds.
type Config struct {
	// Concurrency is the maximum number of render attempts executed in
	// parallel by the worker pool.
	Concurrency int

	// TickInterval is how often the scheduler evaluates due jobs when
	// running its own loop. Ignored in externally triggered tick mode.
	TickInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight attempts
	// to drain during graceful shutdown.
	ShutdownTimeout time.Duration

	// LeaseTTL is how long a job dispatch lease is held before expiring.
	// It bounds how long a crashed process can block redispatch of a job.
	LeaseTTL time.Duration

	// DefaultMaxAttempts applies to descriptors that do not set their own
	// retry budget.
	DefaultMaxAttempts int

	// DefaultBackoffBase applies to descriptors that do not set their own
	// backoff base delay.
	DefaultBackoffBase time.Duration

	// DefaultBackoffCeiling caps the backoff delay for descriptors that do
	// not set their own ceiling.
	DefaultBackoffCeiling time.Duration

	// DefaultTimeout applies to descriptors without an explicit render
	// deadline.
	DefaultTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:           4,
		TickInterval:          1 * time.Second,
		ShutdownTimeout:       30 * time.Second,
		LeaseTTL:              2 * time.Minute,
		DefaultMaxAttempts:    3,
		DefaultBackoffBase:    5 * time.Second,
		DefaultBackoffCeiling: 5 * time.Minute,
		DefaultTimeout:        1 * time.Minute,
	}
}
