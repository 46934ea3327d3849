package scheduler

import (
	"log/slog"
	"time"

	"github.com/pagewatch/pagewatch/backoff"
	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/job"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the loop evaluates due jobs.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithLeaseTTL sets the dispatch lease expiry. It bounds how long a
// crashed holder can block a job from being redispatched.
func WithLeaseTTL(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHooks attaches a hook registry for lifecycle events.
func WithHooks(r *hook.Registry) Option {
	return func(s *Scheduler) { s.hooks = r }
}

// WithBackoff overrides how retry delays are derived from a descriptor.
// The default is exponential doubling from BackoffBase capped at
// BackoffCeiling.
func WithBackoff(fn func(d *job.Descriptor) backoff.Strategy) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.backoffFor = fn
		}
	}
}
