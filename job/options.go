package job

import "time"

// Options configures per-descriptor behavior such as retry budget and
// render deadline.
type Options struct {
	// MaxAttempts is the number of consecutive failures tolerated before
	// the job is exhausted.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffCeiling caps the retry delay.
	BackoffCeiling time.Duration

	// Timeout is the hard deadline for a single render attempt.
	Timeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    3,
		BackoffBase:    5 * time.Second,
		BackoffCeiling: 5 * time.Minute,
		Timeout:        1 * time.Minute,
	}
}

// Option is a functional option for configuring a descriptor.
type Option func(*Options)

// WithMaxAttempts sets the retry budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithBackoff sets the retry backoff base delay and ceiling.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(o *Options) {
		o.BackoffBase = base
		o.BackoffCeiling = ceiling
	}
}

// WithTimeout sets the render deadline for each attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}
