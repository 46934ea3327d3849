package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store    = (*Store)(nil)
	_ result.Store = (*Store)(nil)
)

// lease is a dispatch lease on one job.
type lease struct {
	holder  string
	expires time.Time
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing, development, and
// single-process deployments that don't need durability.
type Store struct {
	mu sync.RWMutex

	jobs    map[string]*job.Descriptor
	names   map[string]string // job name -> job ID, for duplicate detection
	results map[string]*result.Record
	leases  map[string]*lease
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*job.Descriptor),
		names:   make(map[string]string),
		results: make(map[string]*result.Record),
		leases:  make(map[string]*lease),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// PutDescriptor persists a new descriptor.
func (m *Store) PutDescriptor(_ context.Context, d *job.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[d.Name]; exists {
		return pagewatch.ErrJobAlreadyExists
	}
	key := d.ID.String()
	if _, exists := m.jobs[key]; exists {
		return pagewatch.ErrJobAlreadyExists
	}
	cp := *d
	m.jobs[key] = &cp
	m.names[d.Name] = key
	return nil
}

// GetDescriptor retrieves a descriptor by ID.
func (m *Store) GetDescriptor(_ context.Context, jobID id.JobID) (*job.Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, pagewatch.ErrJobNotFound
	}
	cp := *d
	return &cp, nil
}

// ListDescriptors returns all descriptors ordered by ID ascending.
func (m *Store) ListDescriptors(_ context.Context) ([]*job.Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*job.Descriptor, 0, len(m.jobs))
	for _, d := range m.jobs {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// DeleteDescriptor removes a descriptor by ID.
func (m *Store) DeleteDescriptor(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	d, ok := m.jobs[key]
	if !ok {
		return pagewatch.ErrJobNotFound
	}
	delete(m.jobs, key)
	delete(m.names, d.Name)
	return nil
}

// ReplaceDescriptors atomically swaps the full descriptor set.
func (m *Store) ReplaceDescriptors(_ context.Context, ds []*job.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make(map[string]*job.Descriptor, len(ds))
	names := make(map[string]string, len(ds))
	for _, d := range ds {
		if _, dup := names[d.Name]; dup {
			return pagewatch.ErrJobAlreadyExists
		}
		cp := *d
		key := d.ID.String()
		jobs[key] = &cp
		names[d.Name] = key
	}
	m.jobs = jobs
	m.names = names
	return nil
}

// AcquireJobLease takes the dispatch lease for a job if it is free or
// expired. Re-acquiring a lease you already hold extends it.
func (m *Store) AcquireJobLease(_ context.Context, jobID id.JobID, holder id.WorkerID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	now := time.Now()
	if l, ok := m.leases[key]; ok && l.expires.After(now) && l.holder != holder.String() {
		return false, nil
	}
	m.leases[key] = &lease{holder: holder.String(), expires: now.Add(ttl)}
	return true, nil
}

// ReleaseJobLease releases the lease if held by holder. Releasing a lease
// held by someone else (or no one) is a no-op.
func (m *Store) ReleaseJobLease(_ context.Context, jobID id.JobID, holder id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if l, ok := m.leases[key]; ok && l.holder == holder.String() {
		delete(m.leases, key)
	}
	return nil
}

// RecordResult atomically replaces the record for the run's job.
func (m *Store) RecordResult(_ context.Context, rec *result.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.results[rec.JobID.String()] = &cp
	return nil
}

// GetResult retrieves the latest record for a job.
func (m *Store) GetResult(_ context.Context, jobID id.JobID) (*result.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.results[jobID.String()]
	if !ok {
		return nil, pagewatch.ErrResultNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListResults returns all records ordered by job ID ascending.
func (m *Store) ListResults(_ context.Context) ([]*result.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*result.Record, 0, len(m.results))
	for _, rec := range m.results {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID.String() < out[j].JobID.String() })
	return out, nil
}

// DeleteResult removes the record for a job, if any.
func (m *Store) DeleteResult(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.results, jobID.String())
	return nil
}
