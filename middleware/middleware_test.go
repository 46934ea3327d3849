package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/pagewatch/pagewatch/job"
	"github.com/pagewatch/pagewatch/middleware"
)

func testRun(t *testing.T) *job.Run {
	t.Helper()
	d, err := job.NewDescriptor("mw-test", "https://example.com", "@every 10s")
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return job.NewRun(d, 1)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Run, next middleware.Handler) error {
			order = append(order, name+":before")
			err := next(ctx)
			order = append(order, name+":after")
			return err
		}
	}

	chain := middleware.Chain(mk("outer"), mk("inner"))
	err := chain(context.Background(), testRun(t), func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChainEmpty(t *testing.T) {
	called := false
	err := middleware.Chain()(context.Background(), testRun(t), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("empty chain should call handler directly, err=%v called=%v", err, called)
	}
}

func TestRecoverConvertsPanicToError(t *testing.T) {
	rec := middleware.Recover(slog.Default())
	err := rec(context.Background(), testRun(t), func(_ context.Context) error {
		panic("engine exploded")
	})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestRecoverPassesThroughErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := middleware.Recover(slog.Default())
	err := rec(context.Background(), testRun(t), func(_ context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
