package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch/job"
)

// CompletionFunc receives every run the pool completes. It is called from
// the executing slot's goroutine, so implementations should be quick or
// hand off to their own machinery.
type CompletionFunc func(run *job.Run)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of executor slots. Values below 1 are
// clamped to 1.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
	}
}

// WithCompletion registers the callback invoked for every completed run.
func WithCompletion(fn CompletionFunc) PoolOption {
	return func(p *Pool) { p.complete = fn }
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// Pool executes render attempts on a fixed number of slots. Submissions
// queue without bound; concurrency is bounded by the slot count. Each slot
// owns one render.Worker for its lifetime, recycling it after timeouts and
// recovered panics.
type Pool struct {
	executor    *Executor
	complete    CompletionFunc
	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Submission
	started bool
	stopped bool

	wg sync.WaitGroup
}

// NewPool creates a pool around the given executor. The pool does not run
// until Start is called.
func NewPool(executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		executor:    executor,
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the executor slots. Calling Start on a running or stopped
// pool is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.runSlot(i)
	}
	p.logger.Info("worker pool started", "concurrency", p.concurrency)
}

// Submit enqueues an attempt. It never blocks and never rejects while the
// pool is accepting work; after Stop it reports false and drops the
// submission.
func (p *Pool) Submit(sub Submission) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.pending = append(p.pending, sub)
	p.cond.Signal()
	return true
}

// QueueDepth reports the number of submissions waiting for a slot. Attempts
// already executing are not counted.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Stop drains the pool. New submissions are rejected immediately, queued
// submissions that have not started are dropped, and in-flight attempts are
// given until the context's deadline to finish before Stop returns anyway.
//
// Dropped submissions never reach the completion callback; their dispatch
// leases are left to expire with the lease TTL. Stop is a shutdown
// operation, so the scheduler state those completions would have updated
// is going away with the process.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	dropped := len(p.pending)
	p.pending = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Info("worker pool dropped queued submissions", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out with attempts in flight")
		return ctx.Err()
	}
}

// next blocks until a submission is available or the pool stops.
func (p *Pool) next() (Submission, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return Submission{}, false
	}
	sub := p.pending[0]
	p.pending = p.pending[1:]
	return sub, true
}

func (p *Pool) runSlot(slot int) {
	defer p.wg.Done()
	w := p.executor.NewWorker()
	for {
		sub, ok := p.next()
		if !ok {
			return
		}
		start := time.Now()
		run, recycle := p.executor.Execute(context.Background(), w, sub)
		if recycle {
			w.Recycle()
			p.logger.Debug("worker slot recycled",
				"slot", slot,
				"job_id", run.JobID,
				"state", run.State,
			)
		}
		p.logger.Debug("attempt finished",
			"slot", slot,
			"job", run.JobName,
			"attempt", run.Attempt,
			"state", run.State,
			"elapsed", time.Since(start),
		)
		if p.complete != nil {
			p.complete(run)
		}
	}
}
