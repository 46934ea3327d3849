// Package store defines the aggregate persistence interface. Each
// subsystem (job, result) defines its own store interface; the composite
// Store composes them plus lifecycle. Backends: Postgres, Redis, and
// Memory.
package store

import (
	"context"

	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
)

// Store is the aggregate persistence interface. A single backend
// implements all subsystem stores.
type Store interface {
	job.Store
	result.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
