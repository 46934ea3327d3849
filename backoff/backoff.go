// Package backoff provides retry delay strategies for the scheduler.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry.
type Strategy interface {
	// Delay returns how long to wait after the nth consecutive failure
	// (1-indexed: n=1 is the delay before the first retry).
	Delay(failures int) time.Duration
}

// Fixed always returns the same delay regardless of the failure count.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed backoff strategy.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Delay returns the fixed interval.
func (f *Fixed) Delay(_ int) time.Duration {
	return f.Interval
}

// Exponential doubles the delay with each consecutive failure:
// Delay = min(Base * 2^(failures-1), Ceiling). A zero Ceiling means
// uncapped. The progression is monotonically non-decreasing.
type Exponential struct {
	Base    time.Duration
	Ceiling time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, ceiling time.Duration) *Exponential {
	return &Exponential{Base: base, Ceiling: ceiling}
}

// Delay returns Base * 2^(failures-1), capped at Ceiling.
func (e *Exponential) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	d := e.Base
	for i := 1; i < failures; i++ {
		d *= 2
		if d < 0 {
			// Overflowed; clamp to the ceiling or the max duration.
			d = 1<<63 - 1
			break
		}
		if e.Ceiling > 0 && d >= e.Ceiling {
			return e.Ceiling
		}
	}
	if e.Ceiling > 0 && d > e.Ceiling {
		return e.Ceiling
	}
	return d
}

// FullJitter draws a uniform delay in [0, exponential delay]. It trades the
// monotonicity of Exponential for herd avoidance when many jobs fail at
// once.
type FullJitter struct {
	Exponential
}

// NewFullJitter creates an exponential backoff with full jitter.
func NewFullJitter(base, ceiling time.Duration) *FullJitter {
	return &FullJitter{Exponential{Base: base, Ceiling: ceiling}}
}

// Delay returns a random duration in [0, Base * 2^(failures-1)], capped.
func (j *FullJitter) Delay(failures int) time.Duration {
	upper := j.Exponential.Delay(failures)
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(upper) + 1)) //nolint:gosec // jitter intentionally uses non-crypto rand
}
