package render

import "fmt"

// Status classifies the outcome of one render attempt.
type Status string

const (
	// StatusSucceeded means the render completed and produced content.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the engine returned an error before the deadline.
	StatusFailed Status = "failed"
	// StatusTimedOut means the render exceeded its deadline and the
	// session was abandoned.
	StatusTimedOut Status = "timed_out"
)

// Outcome is the typed result of one render attempt. Exactly one of
// Content (succeeded) or Err (failed) is set; timed-out outcomes carry
// neither.
type Outcome struct {
	Status  Status
	Content *Content
	Err     error
}

// Succeeded builds a successful outcome.
func Succeeded(c *Content) Outcome {
	return Outcome{Status: StatusSucceeded, Content: c}
}

// Failed builds a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// TimedOut builds a timed-out outcome.
func TimedOut() Outcome {
	return Outcome{Status: StatusTimedOut}
}

// String returns a short human-readable description.
func (o Outcome) String() string {
	switch o.Status {
	case StatusSucceeded:
		return fmt.Sprintf("succeeded (%d bytes)", len(o.Content.Body))
	case StatusFailed:
		return fmt.Sprintf("failed: %v", o.Err)
	default:
		return string(o.Status)
	}
}
