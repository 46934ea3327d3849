package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/result"
)

// RecordResult replaces the record for the run's job. SET is atomic, so a
// reader never observes a half-written record.
func (s *Store) RecordResult(ctx context.Context, rec *result.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("pagewatch/redis: marshal result: %w", err)
	}
	jID := rec.JobID.String()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, resultKey(jID), data, 0)
	pipe.SAdd(ctx, resultIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pagewatch/redis: record result: %w", err)
	}
	return nil
}

// GetResult retrieves the latest record for a job.
func (s *Store) GetResult(ctx context.Context, jobID id.JobID) (*result.Record, error) {
	data, err := s.client.Get(ctx, resultKey(jobID.String())).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, pagewatch.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: get result: %w", err)
	}
	var rec result.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("pagewatch/redis: unmarshal result: %w", err)
	}
	return &rec, nil
}

// ListResults returns all records ordered by job ID ascending.
func (s *Store) ListResults(ctx context.Context) ([]*result.Record, error) {
	ids, err := s.client.SMembers(ctx, resultIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: list result ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, jID := range ids {
		keys[i] = resultKey(jID)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: mget results: %w", err)
	}

	out := make([]*result.Record, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec result.Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("pagewatch/redis: unmarshal result: %w", err)
		}
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID.String() < out[j].JobID.String() })
	return out, nil
}

// DeleteResult removes the record for a job, if any.
func (s *Store) DeleteResult(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, resultKey(jID))
	pipe.SRem(ctx, resultIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pagewatch/redis: delete result: %w", err)
	}
	return nil
}
