package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/middleware"
	"github.com/pagewatch/pagewatch/render"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDescriptor(t *testing.T, name string) *job.Descriptor {
	t.Helper()
	d, err := job.NewDescriptor(name, "https://example.com/"+name, "@every 1m",
		job.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return d
}

func TestExecutorSuccess(t *testing.T) {
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		return &render.Content{Body: []byte("<html>ok</html>"), ContentType: "text/html"}, nil
	})
	e := NewExecutor(r, hook.NewRegistry(discard()), discard())
	run, recycle := e.Execute(context.Background(), e.NewWorker(), Submission{
		Descriptor: testDescriptor(t, "home"),
		Attempt:    1,
	})
	if run.State != job.StateSucceeded {
		t.Fatalf("state = %s, want %s", run.State, job.StateSucceeded)
	}
	if recycle {
		t.Fatal("successful attempt should not recycle the worker")
	}
	if string(run.Payload) != "<html>ok</html>" {
		t.Fatalf("payload = %q", run.Payload)
	}
	if run.ContentType != "text/html" {
		t.Fatalf("content type = %q", run.ContentType)
	}
	if run.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestExecutorFailure(t *testing.T) {
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		return nil, errors.New("engine crashed")
	})
	e := NewExecutor(r, nil, discard())
	run, recycle := e.Execute(context.Background(), e.NewWorker(), Submission{
		Descriptor: testDescriptor(t, "fail"),
		Attempt:    2,
	})
	if run.State != job.StateFailed {
		t.Fatalf("state = %s, want %s", run.State, job.StateFailed)
	}
	if recycle {
		t.Fatal("renderer error should not recycle the worker")
	}
	if !strings.Contains(run.LastError, "engine crashed") {
		t.Fatalf("LastError = %q", run.LastError)
	}
	if run.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", run.Attempt)
	}
}

func TestExecutorTimeout(t *testing.T) {
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewExecutor(r, nil, discard())
	d := testDescriptor(t, "slow")
	d.Timeout = 20 * time.Millisecond

	start := time.Now()
	run, recycle := e.Execute(context.Background(), e.NewWorker(), Submission{Descriptor: d, Attempt: 1})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if run.State != job.StateTimedOut {
		t.Fatalf("state = %s, want %s", run.State, job.StateTimedOut)
	}
	if !recycle {
		t.Fatal("timed out attempt must recycle the worker")
	}
}

func TestExecutorPanicRecycles(t *testing.T) {
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		panic("renderer went sideways")
	})
	e := NewExecutor(r, nil, discard(), middleware.Recover(discard()))
	run, recycle := e.Execute(context.Background(), e.NewWorker(), Submission{
		Descriptor: testDescriptor(t, "boom"),
		Attempt:    1,
	})
	if run.State != job.StateFailed {
		t.Fatalf("state = %s, want %s", run.State, job.StateFailed)
	}
	if !recycle {
		t.Fatal("panicked attempt must recycle the worker")
	}
	if !strings.Contains(run.LastError, "panic") {
		t.Fatalf("LastError = %q", run.LastError)
	}
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		<-block
		return &render.Content{Body: []byte("ok")}, nil
	})
	e := NewExecutor(r, nil, discard())
	p := NewPool(e, WithConcurrency(1), WithLogger(discard()))
	p.Start()
	defer func() {
		close(block)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	}()

	d := testDescriptor(t, "queued")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if !p.Submit(Submission{Descriptor: d, Attempt: 1}) {
				t.Error("Submit rejected while pool running")
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked")
	}
	if depth := p.QueueDepth(); depth == 0 {
		t.Fatal("expected queued submissions with slot busy")
	}
}

func TestPoolBoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	release := make(chan struct{})
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return &render.Content{Body: []byte("ok")}, nil
	})
	e := NewExecutor(r, nil, discard())

	var mu sync.Mutex
	completed := 0
	allDone := make(chan struct{})
	p := NewPool(e, WithConcurrency(2), WithLogger(discard()),
		WithCompletion(func(run *job.Run) {
			mu.Lock()
			completed++
			if completed == 6 {
				close(allDone)
			}
			mu.Unlock()
		}))
	p.Start()

	for i := 0; i < 6; i++ {
		p.Submit(Submission{Descriptor: testDescriptor(t, "load"), Attempt: 1})
	}
	close(release)
	select {
	case <-allDone:
	case <-time.After(2 * time.Second):
		t.Fatal("attempts did not complete")
	}
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPoolStopRejectsAndDrops(t *testing.T) {
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		return &render.Content{Body: []byte("ok")}, nil
	})
	e := NewExecutor(r, nil, discard())
	p := NewPool(e, WithConcurrency(1), WithLogger(discard()))
	p.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Submit(Submission{Descriptor: testDescriptor(t, "late"), Attempt: 1}) {
		t.Fatal("Submit accepted after Stop")
	}
	// Stop twice is a no-op.
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestPoolStopTimeout(t *testing.T) {
	block := make(chan struct{})
	r := render.RenderFunc(func(ctx context.Context, target string) (*render.Content, error) {
		<-block
		return &render.Content{Body: []byte("ok")}, nil
	})
	e := NewExecutor(r, nil, discard())
	d := testDescriptor(t, "stuck")
	d.Timeout = time.Minute
	p := NewPool(e, WithConcurrency(1), WithLogger(discard()))
	p.Start()
	p.Submit(Submission{Descriptor: d, Attempt: 1})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop = %v, want deadline exceeded", err)
	}
	close(block)
}
