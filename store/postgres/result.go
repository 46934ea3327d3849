package postgres

import (
	"context"
	"fmt"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
)

const resultColumns = `job_id, job_name, target, run_id, attempt, state,
	payload, content_type, last_error, consecutive_failures,
	started_at, completed_at, recorded_at`

func scanResult(row interface{ Scan(...any) error }) (*result.Record, error) {
	var (
		rec      result.Record
		rawJobID string
		rawRunID string
		state    string
	)
	err := row.Scan(&rawJobID, &rec.JobName, &rec.Target, &rawRunID, &rec.Attempt,
		&state, &rec.Payload, &rec.ContentType, &rec.LastError,
		&rec.ConsecutiveFailures, &rec.StartedAt, &rec.CompletedAt, &rec.RecordedAt)
	if err != nil {
		return nil, err
	}
	jID, err := id.ParseJobID(rawJobID)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: parse job id: %w", err)
	}
	rec.JobID = jID
	if rawRunID != "" {
		rID, rerr := id.ParseRunID(rawRunID)
		if rerr != nil {
			return nil, fmt.Errorf("pagewatch/postgres: parse run id: %w", rerr)
		}
		rec.RunID = rID
	}
	rec.State = job.State(state)
	return &rec, nil
}

// RecordResult replaces the record for the run's job. The upsert is a
// single statement, so readers never see a record mixing two runs.
func (s *Store) RecordResult(ctx context.Context, rec *result.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pagewatch_results
			(job_id, job_name, target, run_id, attempt, state,
			 payload, content_type, last_error, consecutive_failures,
			 started_at, completed_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (job_id) DO UPDATE SET
			job_name             = EXCLUDED.job_name,
			target               = EXCLUDED.target,
			run_id               = EXCLUDED.run_id,
			attempt              = EXCLUDED.attempt,
			state                = EXCLUDED.state,
			payload              = EXCLUDED.payload,
			content_type         = EXCLUDED.content_type,
			last_error           = EXCLUDED.last_error,
			consecutive_failures = EXCLUDED.consecutive_failures,
			started_at           = EXCLUDED.started_at,
			completed_at         = EXCLUDED.completed_at,
			recorded_at          = EXCLUDED.recorded_at`,
		rec.JobID.String(), rec.JobName, rec.Target, rec.RunID.String(), rec.Attempt,
		string(rec.State), rec.Payload, rec.ContentType, rec.LastError,
		rec.ConsecutiveFailures, rec.StartedAt, rec.CompletedAt, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: record result: %w", err)
	}
	return nil
}

// GetResult retrieves the latest record for a job.
func (s *Store) GetResult(ctx context.Context, jobID id.JobID) (*result.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM pagewatch_results WHERE job_id = $1`,
		jobID.String(),
	)
	rec, err := scanResult(row)
	if isNoRows(err) {
		return nil, pagewatch.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: get result: %w", err)
	}
	return rec, nil
}

// ListResults returns all records ordered by job ID ascending.
func (s *Store) ListResults(ctx context.Context) ([]*result.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM pagewatch_results ORDER BY job_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: list results: %w", err)
	}
	defer rows.Close()

	var out []*result.Record
	for rows.Next() {
		rec, serr := scanResult(rows)
		if serr != nil {
			return nil, fmt.Errorf("pagewatch/postgres: scan result: %w", serr)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pagewatch/postgres: list results: %w", err)
	}
	return out, nil
}

// DeleteResult removes the record for a job, if any.
func (s *Store) DeleteResult(ctx context.Context, jobID id.JobID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM pagewatch_results WHERE job_id = $1`, jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("pagewatch/postgres: delete result: %w", err)
	}
	return nil
}
