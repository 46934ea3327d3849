// Package scheduler drives the tick loop: it decides which jobs are due,
// acquires their dispatch leases, hands them to the worker pool, and reacts
// to completions with retry backoff, exhaustion, and result recording.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/pagewatch/pagewatch/backoff"
	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
	"github.com/pagewatch/pagewatch/worker"
)

// Store is the persistence surface the scheduler needs: descriptors with
// dispatch leases, plus the result cache.
type Store interface {
	job.Store
	result.Store
}

// Dispatcher accepts attempt submissions. Satisfied by *worker.Pool.
type Dispatcher interface {
	Submit(sub worker.Submission) bool
}

// jobState is the scheduler's in-memory bookkeeping for one job.
type jobState struct {
	nextDueAt           time.Time
	consecutiveFailures int
	exhausted           bool
	inFlight            bool
}

// JobState is a read-only snapshot of a job's scheduling state.
type JobState struct {
	NextDueAt           time.Time `json:"next_due_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Exhausted           bool      `json:"exhausted"`
	InFlight            bool      `json:"in_flight"`
}

// Stats is an aggregate snapshot of the scheduler.
type Stats struct {
	Jobs       int       `json:"jobs"`
	Exhausted  int       `json:"exhausted"`
	InFlight   int       `json:"in_flight"`
	Ticks      uint64    `json:"ticks"`
	Dispatched uint64    `json:"dispatched"`
	LastTickAt time.Time `json:"last_tick_at"`
}

// Scheduler owns the tick loop. All scheduling state lives behind one
// mutex: ticks, completions, reloads, and resets serialize against each
// other, so a job can never be double-dispatched.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	hooks      *hook.Registry
	logger     *slog.Logger

	tickInterval time.Duration
	leaseTTL     time.Duration
	holderID     id.WorkerID
	backoffFor   func(d *job.Descriptor) backoff.Strategy
	nowFn        func() time.Time

	mu         sync.Mutex
	states     map[id.JobID]*jobState
	schedules  map[string]cronlib.Schedule
	ticks      uint64
	dispatched uint64
	lastTickAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// New creates a scheduler. The dispatcher is typically a *worker.Pool whose
// completion callback is wired to HandleCompletion.
func New(store Store, dispatcher Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		logger:       slog.Default(),
		tickInterval: time.Second,
		leaseTTL:     5 * time.Minute,
		holderID:     id.NewWorkerID(),
		backoffFor: func(d *job.Descriptor) backoff.Strategy {
			return backoff.NewExponential(d.BackoffBase, d.BackoffCeiling)
		},
		nowFn:     time.Now,
		states:    make(map[id.JobID]*jobState),
		schedules: make(map[string]cronlib.Schedule),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop. Safe to call once; later calls are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info("scheduler started",
		"tick_interval", s.tickInterval,
		"holder_id", s.holderID,
	)
}

// Stop halts the tick loop and waits for it to exit or the context to
// expire. In-flight attempts are the pool's concern, not the scheduler's.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			if _, err := s.Tick(context.Background(), now); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick evaluates every job against now and dispatches the due ones, in
// due-time order with job ID as the tiebreaker. It returns the number
// dispatched. Per-job faults are logged and skipped so one bad job cannot
// stall the rest; only a store listing failure aborts the tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()

	ds, err := s.store.ListDescriptors(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	s.reconcileLocked(ds, now)

	due := make([]*job.Descriptor, 0, len(ds))
	for _, d := range ds {
		st := s.states[d.ID]
		if st == nil || st.exhausted || st.inFlight {
			continue
		}
		if st.consecutiveFailures >= d.MaxAttempts {
			// The retry budget can shrink out from under a job on reload.
			s.exhaustLocked(ctx, d, st)
			continue
		}
		if !st.nextDueAt.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		si, sj := s.states[due[i].ID], s.states[due[j].ID]
		if !si.nextDueAt.Equal(sj.nextDueAt) {
			return si.nextDueAt.Before(sj.nextDueAt)
		}
		return due[i].ID.String() < due[j].ID.String()
	})

	dispatched := 0
	for _, d := range due {
		st := s.states[d.ID]
		ok, err := s.store.AcquireJobLease(ctx, d.ID, s.holderID, s.leaseTTL)
		if err != nil {
			s.logger.Error("lease acquisition failed", "job", d.Name, "error", err)
			continue
		}
		if !ok {
			// Another holder (or a stale lease) has the job.
			s.logger.Debug("job lease held elsewhere", "job", d.Name)
			continue
		}
		st.inFlight = true
		if !s.dispatcher.Submit(worker.Submission{Descriptor: d, Attempt: st.consecutiveFailures + 1}) {
			st.inFlight = false
			if rerr := s.store.ReleaseJobLease(ctx, d.ID, s.holderID); rerr != nil {
				s.logger.Error("lease release failed", "job", d.Name, "error", rerr)
			}
			continue
		}
		dispatched++
	}

	s.ticks++
	s.dispatched += uint64(dispatched)
	s.lastTickAt = now
	s.mu.Unlock()

	// Emitted unlocked so a hook may call back into the scheduler.
	if s.hooks != nil {
		s.hooks.EmitTickCompleted(ctx, len(due), dispatched)
	}
	if dispatched > 0 {
		s.logger.Debug("tick dispatched", "due", len(due), "dispatched", dispatched)
	}
	return dispatched, nil
}

// reconcileLocked aligns the state map with the current descriptor set:
// new jobs get their first due time, removed jobs are forgotten.
func (s *Scheduler) reconcileLocked(ds []*job.Descriptor, now time.Time) {
	seen := make(map[id.JobID]struct{}, len(ds))
	for _, d := range ds {
		seen[d.ID] = struct{}{}
		if _, ok := s.states[d.ID]; ok {
			continue
		}
		sched, err := s.scheduleLocked(d.Cadence)
		if err != nil {
			s.logger.Error("unschedulable cadence", "job", d.Name, "cadence", d.Cadence, "error", err)
			continue
		}
		s.states[d.ID] = &jobState{nextDueAt: sched.Next(now)}
	}
	for jid, st := range s.states {
		if _, ok := seen[jid]; ok {
			continue
		}
		if st.inFlight {
			// Let the completion handler observe the removal.
			continue
		}
		delete(s.states, jid)
	}
}

// HandleCompletion is the worker pool's completion callback. It releases
// the job's lease, records the result, and advances the schedule: success
// resets the failure streak and moves to the next cadence occurrence,
// failure schedules a backoff retry or exhausts the job.
func (s *Scheduler) HandleCompletion(run *job.Run) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ReleaseJobLease(ctx, run.JobID, s.holderID); err != nil {
		s.logger.Error("lease release failed", "job", run.JobName, "error", err)
	}

	st := s.states[run.JobID]
	if st != nil {
		st.inFlight = false
	}

	d, err := s.store.GetDescriptor(ctx, run.JobID)
	if err != nil {
		// Job removed mid-flight. The run's outcome still lands in the
		// cache; the state entry goes with the job.
		s.recordLocked(ctx, result.FromRun(run, failureCount(st, run)))
		delete(s.states, run.JobID)
		return
	}
	if st == nil {
		st = &jobState{}
		s.states[run.JobID] = st
	}

	now := s.nowFn()
	switch run.State {
	case job.StateSucceeded:
		st.consecutiveFailures = 0
		st.exhausted = false
		s.recordLocked(ctx, result.FromRun(run, 0))
		if sched, serr := s.scheduleLocked(d.Cadence); serr == nil {
			st.nextDueAt = sched.Next(now)
		}
	default:
		st.consecutiveFailures++
		if st.consecutiveFailures >= d.MaxAttempts {
			s.exhaustFromRunLocked(ctx, d, st, run)
			return
		}
		s.recordLocked(ctx, result.FromRun(run, st.consecutiveFailures))
		delay := s.backoffFor(d).Delay(st.consecutiveFailures)
		st.nextDueAt = now.Add(delay)
		s.logger.Info("attempt failed, retry scheduled",
			"job", run.JobName,
			"attempt", run.Attempt,
			"state", run.State,
			"retry_in", delay,
		)
	}
}

func failureCount(st *jobState, run *job.Run) int {
	if st != nil {
		return st.consecutiveFailures
	}
	if run.State == job.StateSucceeded {
		return 0
	}
	return run.Attempt
}

// exhaustFromRunLocked marks the job exhausted after its final failed
// attempt and writes the terminal record carrying that attempt's error.
func (s *Scheduler) exhaustFromRunLocked(ctx context.Context, d *job.Descriptor, st *jobState, run *job.Run) {
	st.exhausted = true
	rec := result.FromRun(run, st.consecutiveFailures)
	rec.State = job.StateExhausted
	s.recordLocked(ctx, rec)
	s.logger.Warn("job exhausted",
		"job", d.Name,
		"attempts", st.consecutiveFailures,
		"last_error", run.LastError,
	)
	if s.hooks != nil {
		s.hooks.EmitJobExhausted(ctx, d.ID, d.Name)
	}
}

// exhaustLocked marks a job exhausted without executing it, preserving
// whatever error the cached record already carries.
func (s *Scheduler) exhaustLocked(ctx context.Context, d *job.Descriptor, st *jobState) {
	st.exhausted = true
	rec, err := s.store.GetResult(ctx, d.ID)
	if err != nil || rec == nil {
		rec = &result.Record{
			JobID:               d.ID,
			JobName:             d.Name,
			Target:              d.Target,
			ConsecutiveFailures: st.consecutiveFailures,
		}
	}
	rec.State = job.StateExhausted
	rec.RecordedAt = s.nowFn().UTC()
	s.recordLocked(ctx, rec)
	s.logger.Warn("job exhausted", "job", d.Name, "attempts", st.consecutiveFailures)
	if s.hooks != nil {
		s.hooks.EmitJobExhausted(ctx, d.ID, d.Name)
	}
}

func (s *Scheduler) recordLocked(ctx context.Context, rec *result.Record) {
	if err := s.store.RecordResult(ctx, rec); err != nil {
		s.logger.Error("result record failed", "job", rec.JobName, "error", err)
	}
}

// scheduleLocked returns the parsed schedule for a cadence expression,
// caching parses across ticks.
func (s *Scheduler) scheduleLocked(cadence string) (cronlib.Schedule, error) {
	if sched, ok := s.schedules[cadence]; ok {
		return sched, nil
	}
	sched, err := job.ParseCadence(cadence)
	if err != nil {
		return nil, err
	}
	s.schedules[cadence] = sched
	return sched, nil
}

// Reload atomically replaces the descriptor set. A job keeps its identity
// across reloads: a descriptor whose name already exists adopts the
// existing job's ID, carrying its failure streak, exhaustion, and any
// in-flight attempt with it, so completions and leases from attempts
// dispatched before the reload still match. If the cadence changed, the
// next due time is recomputed from the new cadence. Removed jobs stop
// being scheduled on the next tick.
func (s *Scheduler) Reload(ctx context.Context, ds []*job.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.ListDescriptors(ctx)
	if err != nil {
		return err
	}
	prevByName := make(map[string]*job.Descriptor, len(prev))
	for _, d := range prev {
		prevByName[d.Name] = d
	}
	for _, d := range ds {
		if old := prevByName[d.Name]; old != nil {
			d.ID = old.ID
		}
	}
	if err := s.store.ReplaceDescriptors(ctx, ds); err != nil {
		return err
	}

	now := s.nowFn()
	next := make(map[id.JobID]*jobState, len(ds))
	for _, d := range ds {
		sched, serr := s.scheduleLocked(d.Cadence)
		if serr != nil {
			s.logger.Error("unschedulable cadence", "job", d.Name, "cadence", d.Cadence, "error", serr)
			continue
		}
		st := &jobState{nextDueAt: sched.Next(now)}
		if old := prevByName[d.Name]; old != nil {
			if prevSt := s.states[old.ID]; prevSt != nil {
				st.consecutiveFailures = prevSt.consecutiveFailures
				st.exhausted = prevSt.exhausted
				st.inFlight = prevSt.inFlight
				if old.Cadence == d.Cadence {
					st.nextDueAt = prevSt.nextDueAt
				}
			}
		}
		next[d.ID] = st
	}
	s.states = next
	s.logger.Info("descriptors reloaded", "jobs", len(ds))
	return nil
}

// ResetJob clears a job's failure streak and exhaustion and schedules it
// for its next cadence occurrence. The cached result is left in place
// until the next completion overwrites it.
func (s *Scheduler) ResetJob(ctx context.Context, jobID id.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.store.GetDescriptor(ctx, jobID)
	if err != nil {
		return err
	}
	sched, err := s.scheduleLocked(d.Cadence)
	if err != nil {
		return err
	}
	st := s.states[jobID]
	if st == nil {
		st = &jobState{}
		s.states[jobID] = st
	}
	st.consecutiveFailures = 0
	st.exhausted = false
	st.nextDueAt = sched.Next(s.nowFn())
	s.logger.Info("job reset", "job", d.Name, "next_due_at", st.nextDueAt)
	return nil
}

// JobState returns a snapshot of one job's scheduling state.
func (s *Scheduler) JobState(jobID id.JobID) (JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[jobID]
	if !ok {
		return JobState{}, false
	}
	return JobState{
		NextDueAt:           st.nextDueAt,
		ConsecutiveFailures: st.consecutiveFailures,
		Exhausted:           st.exhausted,
		InFlight:            st.inFlight,
	}, true
}

// Stats returns an aggregate snapshot.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{
		Jobs:       len(s.states),
		Ticks:      s.ticks,
		Dispatched: s.dispatched,
		LastTickAt: s.lastTickAt,
	}
	for _, st := range s.states {
		if st.exhausted {
			stats.Exhausted++
		}
		if st.inFlight {
			stats.InFlight++
		}
	}
	return stats
}
