// Package job defines the job descriptor, run attempt entities, and the
// descriptor store interface.
//
// # Descriptor
//
// A [Descriptor] is an immutable definition of recurring render work: a
// target, a cadence, a retry policy, and a per-attempt timeout. Descriptors
// are created at configuration load and replaced wholesale on reload.
//
// Cadence accepts 5-field cron expressions and "@every" interval
// descriptors:
//
//	"*/5 * * * *"   every five minutes on the minute
//	"@every 30s"    every thirty seconds
//
// # Run
//
// A [Run] is one execution attempt. It moves through a small state machine:
//
//	pending → running → succeeded
//	pending → running → failed
//	pending → running → timed_out
//
// Exhausted is recorded against a job (not an attempt) when its retry
// budget is consumed; the scheduler emits it as a terminal result without
// executing anything.
//
// # Configuration loading
//
// [LoadFile] and [ParseConfig] turn a JSON jobs file into validated
// descriptors. Malformed entries are rejected per-entry with
// pagewatch.ErrInvalidDescriptor and never scheduled; valid entries load
// normally.
package job
