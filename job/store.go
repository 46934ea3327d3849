package job

import (
	"context"
	"time"

	"github.com/pagewatch/pagewatch/id"
)

// Store defines the persistence contract for job descriptors and the
// per-job dispatch leases the scheduler uses to guarantee at most one
// in-flight attempt per job.
type Store interface {
	// PutDescriptor persists a new descriptor. Returns an error if a
	// descriptor with the same name already exists.
	PutDescriptor(ctx context.Context, d *Descriptor) error

	// GetDescriptor retrieves a descriptor by ID.
	GetDescriptor(ctx context.Context, jobID id.JobID) (*Descriptor, error)

	// ListDescriptors returns all descriptors ordered by ID ascending.
	ListDescriptors(ctx context.Context) ([]*Descriptor, error)

	// DeleteDescriptor removes a descriptor by ID.
	DeleteDescriptor(ctx context.Context, jobID id.JobID) error

	// ReplaceDescriptors atomically swaps the full descriptor set.
	// Used by configuration reload: removed jobs stop being scheduled on
	// the next tick, in-flight attempts are unaffected.
	ReplaceDescriptors(ctx context.Context, ds []*Descriptor) error

	// AcquireJobLease attempts to take the dispatch lease for a job.
	// Returns true if acquired. The lease expires after ttl, bounding how
	// long a crashed holder can block redispatch.
	AcquireJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID, ttl time.Duration) (bool, error)

	// ReleaseJobLease releases the dispatch lease if held by holder.
	ReleaseJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID) error
}
