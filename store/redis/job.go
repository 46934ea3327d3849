package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
)

// jobEntity is the JSON shape stored for a descriptor.
type jobEntity struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Target         string        `json:"target"`
	Cadence        string        `json:"cadence"`
	MaxAttempts    int           `json:"max_attempts"`
	BackoffBase    time.Duration `json:"backoff_base"`
	BackoffCeiling time.Duration `json:"backoff_ceiling"`
	Timeout        time.Duration `json:"timeout"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func toJobEntity(d *job.Descriptor) *jobEntity {
	return &jobEntity{
		ID:             d.ID.String(),
		Name:           d.Name,
		Target:         d.Target,
		Cadence:        d.Cadence,
		MaxAttempts:    d.MaxAttempts,
		BackoffBase:    d.BackoffBase,
		BackoffCeiling: d.BackoffCeiling,
		Timeout:        d.Timeout,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromJobEntity(e *jobEntity) (*job.Descriptor, error) {
	jID, err := id.ParseJobID(e.ID)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: parse job id: %w", err)
	}
	return &job.Descriptor{
		Entity: pagewatch.Entity{
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		ID:             jID,
		Name:           e.Name,
		Target:         e.Target,
		Cadence:        e.Cadence,
		MaxAttempts:    e.MaxAttempts,
		BackoffBase:    e.BackoffBase,
		BackoffCeiling: e.BackoffCeiling,
		Timeout:        e.Timeout,
	}, nil
}

// PutDescriptor persists a new descriptor, enforcing name uniqueness via
// the name index hash.
func (s *Store) PutDescriptor(ctx context.Context, d *job.Descriptor) error {
	jID := d.ID.String()

	ok, err := s.client.HSetNX(ctx, jobNamesKey, d.Name, jID).Result()
	if err != nil {
		return fmt.Errorf("pagewatch/redis: put descriptor name index: %w", err)
	}
	if !ok {
		return pagewatch.ErrJobAlreadyExists
	}

	data, err := json.Marshal(toJobEntity(d))
	if err != nil {
		return fmt.Errorf("pagewatch/redis: marshal descriptor: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(jID), data, 0)
	pipe.SAdd(ctx, jobIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pagewatch/redis: put descriptor: %w", err)
	}
	return nil
}

// GetDescriptor retrieves a descriptor by ID.
func (s *Store) GetDescriptor(ctx context.Context, jobID id.JobID) (*job.Descriptor, error) {
	data, err := s.client.Get(ctx, jobKey(jobID.String())).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, pagewatch.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: get descriptor: %w", err)
	}
	var e jobEntity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("pagewatch/redis: unmarshal descriptor: %w", err)
	}
	return fromJobEntity(&e)
}

// ListDescriptors returns all descriptors ordered by ID ascending.
func (s *Store) ListDescriptors(ctx context.Context) ([]*job.Descriptor, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: list job ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, jID := range ids {
		keys[i] = jobKey(jID)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("pagewatch/redis: mget descriptors: %w", err)
	}

	out := make([]*job.Descriptor, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// ID set member without a value key; skip the stale entry.
			continue
		}
		var e jobEntity
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("pagewatch/redis: unmarshal descriptor: %w", err)
		}
		d, err := fromJobEntity(&e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sortDescriptors(out)
	return out, nil
}

// sortDescriptors orders descriptors by ID ascending.
func sortDescriptors(ds []*job.Descriptor) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID.String() < ds[j].ID.String() })
}

// DeleteDescriptor removes a descriptor by ID.
func (s *Store) DeleteDescriptor(ctx context.Context, jobID id.JobID) error {
	d, err := s.GetDescriptor(ctx, jobID)
	if err != nil {
		return err
	}
	jID := jobID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jID))
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.HDel(ctx, jobNamesKey, d.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pagewatch/redis: delete descriptor: %w", err)
	}
	return nil
}

// ReplaceDescriptors atomically swaps the full descriptor set.
func (s *Store) ReplaceDescriptors(ctx context.Context, ds []*job.Descriptor) error {
	old, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return fmt.Errorf("pagewatch/redis: list job ids: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, jID := range old {
		pipe.Del(ctx, jobKey(jID))
	}
	pipe.Del(ctx, jobIDsKey, jobNamesKey)

	for _, d := range ds {
		data, merr := json.Marshal(toJobEntity(d))
		if merr != nil {
			return fmt.Errorf("pagewatch/redis: marshal descriptor: %w", merr)
		}
		jID := d.ID.String()
		pipe.Set(ctx, jobKey(jID), data, 0)
		pipe.SAdd(ctx, jobIDsKey, jID)
		pipe.HSet(ctx, jobNamesKey, d.Name, jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pagewatch/redis: replace descriptors: %w", err)
	}
	return nil
}

// AcquireJobLease takes the dispatch lease via SET NX with a TTL. Redis
// expires the key itself, so a crashed holder never blocks redispatch past
// the TTL. The current holder re-acquiring extends the lease.
func (s *Store) AcquireJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID, ttl time.Duration) (bool, error) {
	key := leaseKey(jobID.String())
	ok, err := s.client.SetNX(ctx, key, holder.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("pagewatch/redis: acquire lease: %w", err)
	}
	if ok {
		return true, nil
	}

	cur, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; next tick will get it.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pagewatch/redis: acquire lease: %w", err)
	}
	if cur != holder.String() {
		return false, nil
	}
	if err := s.client.Set(ctx, key, holder.String(), ttl).Err(); err != nil {
		return false, fmt.Errorf("pagewatch/redis: extend lease: %w", err)
	}
	return true, nil
}

// ReleaseJobLease deletes the lease if held by holder.
func (s *Store) ReleaseJobLease(ctx context.Context, jobID id.JobID, holder id.WorkerID) error {
	key := leaseKey(jobID.String())
	cur, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pagewatch/redis: release lease: %w", err)
	}
	if cur != holder.String() {
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("pagewatch/redis: release lease: %w", err)
	}
	return nil
}
