// Package pagewatch provides a scheduled render-automation engine for Go.
// It periodically executes rendering jobs against an external rendering
// engine, coordinates bounded-concurrency execution with retry and backoff,
// and keeps the latest outcome per job in a queryable result cache.
//
// Pagewatch is designed as a library, not a service. Import it, configure a
// store and a renderer, and feed it job descriptors:
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithRenderer(render.NewHTTPRenderer("http://renderer:9222")),
//	    engine.WithJobsFile("jobs.json"),
//	)
//
// # Architecture
//
// A tick-driven Scheduler evaluates due jobs and submits attempts to a
// bounded Worker Pool. Each attempt runs in a fresh rendering session with a
// hard timeout. Completions flow back to the Scheduler, which applies the
// retry policy and records the latest outcome in the result store.
//
// The Scheduler tolerates both a continuously running tick loop and
// one-shot externally triggered ticks (cron-style invocation) with
// identical semantics.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package pagewatch
