package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/result"
)

func newDescriptor(t *testing.T, name string) *job.Descriptor {
	t.Helper()
	d, err := job.NewDescriptor(name, "https://example.com/"+name, "@every 1m")
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return d
}

func TestDescriptorCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := newDescriptor(t, "home")
	if err := s.PutDescriptor(ctx, d); err != nil {
		t.Fatalf("PutDescriptor: %v", err)
	}
	if err := s.PutDescriptor(ctx, newDescriptor(t, "home")); !errors.Is(err, pagewatch.ErrJobAlreadyExists) {
		t.Fatalf("duplicate name: got %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetDescriptor(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDescriptor: %v", err)
	}
	if got.Name != "home" || got.Target != d.Target {
		t.Fatalf("got %+v", got)
	}

	// Mutating the returned copy must not touch the stored descriptor.
	got.Target = "mutated"
	again, _ := s.GetDescriptor(ctx, d.ID)
	if again.Target == "mutated" {
		t.Fatal("store returned a shared pointer")
	}

	if err := s.DeleteDescriptor(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDescriptor: %v", err)
	}
	if _, err := s.GetDescriptor(ctx, d.ID); !errors.Is(err, pagewatch.ErrJobNotFound) {
		t.Fatalf("after delete: got %v, want ErrJobNotFound", err)
	}
	// Name freed by deletion.
	if err := s.PutDescriptor(ctx, newDescriptor(t, "home")); err != nil {
		t.Fatalf("reuse name after delete: %v", err)
	}
}

func TestListDescriptorsOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, name := range []string{"c", "a", "b"} {
		if err := s.PutDescriptor(ctx, newDescriptor(t, name)); err != nil {
			t.Fatalf("PutDescriptor(%s): %v", name, err)
		}
	}
	ds, err := s.ListDescriptors(ctx)
	if err != nil {
		t.Fatalf("ListDescriptors: %v", err)
	}
	if len(ds) != 3 {
		t.Fatalf("len = %d, want 3", len(ds))
	}
	for i := 1; i < len(ds); i++ {
		if ds[i-1].ID.String() >= ds[i].ID.String() {
			t.Fatalf("not ordered by ID: %s >= %s", ds[i-1].ID, ds[i].ID)
		}
	}
}

func TestReplaceDescriptors(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.PutDescriptor(ctx, newDescriptor(t, "old")); err != nil {
		t.Fatal(err)
	}

	next := []*job.Descriptor{newDescriptor(t, "new-a"), newDescriptor(t, "new-b")}
	if err := s.ReplaceDescriptors(ctx, next); err != nil {
		t.Fatalf("ReplaceDescriptors: %v", err)
	}
	ds, _ := s.ListDescriptors(ctx)
	if len(ds) != 2 {
		t.Fatalf("len = %d, want 2", len(ds))
	}
	for _, d := range ds {
		if d.Name == "old" {
			t.Fatal("old descriptor survived replace")
		}
	}
}

func TestJobLease(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := newDescriptor(t, "leased")
	a, b := id.NewWorkerID(), id.NewWorkerID()

	ok, err := s.AcquireJobLease(ctx, d.ID, a, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = s.AcquireJobLease(ctx, d.ID, b, time.Minute)
	if err != nil || ok {
		t.Fatalf("contended acquire: ok=%v err=%v, want false", ok, err)
	}
	// Same holder extends.
	ok, _ = s.AcquireJobLease(ctx, d.ID, a, time.Minute)
	if !ok {
		t.Fatal("holder could not extend its own lease")
	}

	// Release by a non-holder is a no-op.
	if err := s.ReleaseJobLease(ctx, d.ID, b); err != nil {
		t.Fatalf("ReleaseJobLease(non-holder): %v", err)
	}
	ok, _ = s.AcquireJobLease(ctx, d.ID, b, time.Minute)
	if ok {
		t.Fatal("non-holder release freed the lease")
	}

	if err := s.ReleaseJobLease(ctx, d.ID, a); err != nil {
		t.Fatalf("ReleaseJobLease: %v", err)
	}
	ok, _ = s.AcquireJobLease(ctx, d.ID, b, time.Minute)
	if !ok {
		t.Fatal("lease not acquirable after release")
	}
}

func TestJobLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := newDescriptor(t, "expiring")
	a, b := id.NewWorkerID(), id.NewWorkerID()

	if ok, _ := s.AcquireJobLease(ctx, d.ID, a, 10*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := s.AcquireJobLease(ctx, d.ID, b, time.Minute); !ok {
		t.Fatal("expired lease blocked acquisition")
	}
}

func TestResultCache(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := newDescriptor(t, "cached")

	if _, err := s.GetResult(ctx, d.ID); !errors.Is(err, pagewatch.ErrResultNotFound) {
		t.Fatalf("empty cache: got %v, want ErrResultNotFound", err)
	}

	run := job.NewRun(d, 1)
	run.State = job.StateSucceeded
	run.Payload = []byte("<html>v1</html>")
	if err := s.RecordResult(ctx, result.FromRun(run, 0)); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	// A newer run replaces the record wholesale.
	run2 := job.NewRun(d, 1)
	run2.State = job.StateFailed
	run2.LastError = "boom"
	if err := s.RecordResult(ctx, result.FromRun(run2, 1)); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	rec, err := s.GetResult(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if rec.RunID != run2.ID || rec.State != job.StateFailed {
		t.Fatalf("record not replaced: %+v", rec)
	}
	if len(rec.Payload) != 0 {
		t.Fatal("failed record kept the old payload")
	}

	if err := s.DeleteResult(ctx, d.ID); err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
	if _, err := s.GetResult(ctx, d.ID); !errors.Is(err, pagewatch.ErrResultNotFound) {
		t.Fatalf("after delete: got %v", err)
	}
}

func TestRecordResultConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := newDescriptor(t, "race")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run := job.NewRun(d, 1)
			run.State = job.StateSucceeded
			run.Payload = []byte("payload")
			run.ContentType = "text/html"
			if err := s.RecordResult(ctx, result.FromRun(run, 0)); err != nil {
				t.Errorf("RecordResult: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := s.GetResult(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	// Whatever run won, the record must be internally consistent.
	if rec.State != job.StateSucceeded || string(rec.Payload) != "payload" || rec.ContentType != "text/html" {
		t.Fatalf("torn record: %+v", rec)
	}
}
