package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

const jobColumns = `id, name, target, cadence, max_attempts,
	backoff_base_ns, backoff_ceiling_ns, timeout_ns, created_at, updated_at`

// scanDescriptor reads one descriptor row.
func scanDescriptor(row interface{ Scan(...any) error }) (*job.Descriptor, error) {
	var (
		d         job.Descriptor
		rawID     string
		baseNs    int64
		ceilingNs int64
		timeoutNs int64
	)
	err := row.Scan(&rawID, &d.Name, &d.Target, &d.Cadence, &d.MaxAttempts,
		&baseNs, &ceilingNs, &timeoutNs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	jID, err := id.ParseJobID(rawID)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: parse job id: %w", err)
	}
	d.ID = jID
	d.BackoffBase = time.Duration(baseNs)
	d.BackoffCeiling = time.Duration(ceilingNs)
	d.Timeout = time.Duration(timeoutNs)
	return &d, nil
}

// PutDescriptor persists a new descriptor.
func (s *Store) PutDescriptor(ctx context.Context, d *job.Descriptor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pagewatch_jobs
			(id, name, target, cadence, max_attempts,
			 backoff_base_ns, backoff_ceiling_ns, timeout_ns, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID.String(), d.Name, d.Target, d.Cadence, d.MaxAttempts,
		int64(d.BackoffBase), int64(d.BackoffCeiling), int64(d.Timeout),
		d.CreatedAt, d.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return pagewatch.ErrJobAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: put descriptor: %w", err)
	}
	return nil
}

// GetDescriptor retrieves a descriptor by ID.
func (s *Store) GetDescriptor(ctx context.Context, jobID id.JobID) (*job.Descriptor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM pagewatch_jobs WHERE id = $1`,
		jobID.String(),
	)
	d, err := scanDescriptor(row)
	if isNoRows(err) {
		return nil, pagewatch.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: get descriptor: %w", err)
	}
	return d, nil
}

// ListDescriptors returns all descriptors ordered by ID ascending.
func (s *Store) ListDescriptors(ctx context.Context) ([]*job.Descriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM pagewatch_jobs ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: list descriptors: %w", err)
	}
	defer rows.Close()

	var out []*job.Descriptor
	for rows.Next() {
		d, serr := scanDescriptor(rows)
		if serr != nil {
			return nil, fmt.Errorf("pagewatch/postgres: scan descriptor: %w", serr)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: list descriptors: %w", err)
	}
	return out, nil
}

// DeleteDescriptor removes a descriptor by ID.
func (s *Store) DeleteDescriptor(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pagewatch_jobs WHERE id = $1`, jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: delete descriptor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pagewatch.ErrJobNotFound
	}
	return nil
}

// ReplaceDescriptors swaps the full descriptor set in one transaction.
func (s *Store) ReplaceDescriptors(ctx context.Context, ds []*job.Descriptor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: begin replace: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM pagewatch_jobs`); err != nil {
		return fmt.Errorf("pagewatch/postgres: clear descriptors: %w", err)
	}
	for _, d := range ds {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pagewatch_jobs
				(id, name, target, cadence, max_attempts,
				 backoff_base_ns, backoff_ceiling_ns, timeout_ns, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			d.ID.String(), d.Name, d.Target, d.Cadence, d.MaxAttempts,
			int64(d.BackoffBase), int64(d.BackoffCeiling), int64(d.Timeout),
			d.CreatedAt, d.UpdatedAt,
		); err != nil {
			if isDuplicateKey(err) {
				return pagewatch.ErrJobAlreadyExists
			}
			return fmt.Errorf("pagewatch/postgres: insert descriptor %s: %w", d.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pagewatch/postgres: commit replace: %w", err)
	}
	return nil
}

// AcquireJobLease claims the dispatch lease in a single conditional upsert:
// the insert wins if no lease exists, the update wins if the existing lease
// has expired or already belongs to the holder.
func (s *Store) AcquireJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pagewatch_leases (job_id, holder, expires_at)
		VALUES ($1, $2, NOW() + $3)
		ON CONFLICT (job_id) DO UPDATE
			SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
			WHERE pagewatch_leases.expires_at <= NOW()
			   OR pagewatch_leases.holder = EXCLUDED.holder`,
		jobID.String(), holder.String(), ttl,
	)
	if err != nil {
		return false, fmt.Errorf("pagewatch/postgres: acquire lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseJobLease releases the lease if held by holder.
func (s *Store) ReleaseJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM pagewatch_leases WHERE job_id = $1 AND holder = $2`,
		jobID.String(), holder.String(),
	)
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: release lease: %w", err)
	}
	return nil
}
