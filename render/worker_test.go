package render_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch/render"
)

func staticRenderer(body string) render.Renderer {
	return render.RenderFunc(func(_ context.Context, _ string) (*render.Content, error) {
		return &render.Content{Body: []byte(body), ContentType: "text/html", RenderedAt: time.Now().UTC()}, nil
	})
}

func TestExecuteSucceeded(t *testing.T) {
	w := render.NewWorker(staticRenderer("<html>ok</html>"), nil)

	out := w.Execute(context.Background(), "https://example.com", time.Second)
	if out.Status != render.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", out.Status)
	}
	if string(out.Content.Body) != "<html>ok</html>" {
		t.Errorf("unexpected body %q", out.Content.Body)
	}
}

func TestExecuteFailed(t *testing.T) {
	boom := errors.New("engine crashed")
	w := render.NewWorker(render.RenderFunc(func(_ context.Context, _ string) (*render.Content, error) {
		return nil, boom
	}), nil)

	out := w.Execute(context.Background(), "https://example.com", time.Second)
	if out.Status != render.StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if !errors.Is(out.Err, boom) {
		t.Errorf("err = %v, want wrapped engine error", out.Err)
	}
}

func TestExecuteTimedOutOnHangingEngine(t *testing.T) {
	// A renderer that ignores cancellation and never returns.
	hang := render.RenderFunc(func(_ context.Context, _ string) (*render.Content, error) {
		select {} //nolint:staticcheck // deliberate hang
	})
	w := render.NewWorker(hang, nil)

	const timeout = 50 * time.Millisecond
	start := time.Now()
	out := w.Execute(context.Background(), "https://example.com", timeout)
	elapsed := time.Since(start)

	if out.Status != render.StatusTimedOut {
		t.Fatalf("status = %s, want timed_out", out.Status)
	}
	if elapsed > timeout+200*time.Millisecond {
		t.Errorf("Execute took %v, want <= timeout + epsilon", elapsed)
	}
}

func TestExecuteTimedOutOnSlowEngine(t *testing.T) {
	slow := render.RenderFunc(func(ctx context.Context, _ string) (*render.Content, error) {
		select {
		case <-time.After(5 * time.Second):
			return &render.Content{Body: []byte("late")}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	w := render.NewWorker(slow, nil)

	out := w.Execute(context.Background(), "https://example.com", 20*time.Millisecond)
	if out.Status != render.StatusTimedOut {
		t.Fatalf("status = %s, want timed_out", out.Status)
	}
}

type recyclingRenderer struct {
	render.Renderer
	recycled atomic.Int32
}

func (r *recyclingRenderer) Recycle() { r.recycled.Add(1) }

func TestWorkerRecycle(t *testing.T) {
	rr := &recyclingRenderer{Renderer: staticRenderer("x")}
	w := render.NewWorker(rr, nil)

	w.Recycle()
	if rr.recycled.Load() != 1 {
		t.Error("Recycle not forwarded to renderer")
	}

	// A renderer without Recycle support is a no-op, not a panic.
	render.NewWorker(staticRenderer("y"), nil).Recycle()
}

func TestExecuteRendererPanic(t *testing.T) {
	w := render.NewWorker(render.RenderFunc(func(context.Context, string) (*render.Content, error) {
		panic("engine crash")
	}), nil)

	out := w.Execute(context.Background(), "https://example.com", time.Second)
	if out.Status != render.StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if !errors.Is(out.Err, render.ErrRenderPanic) {
		t.Fatalf("err = %v, want ErrRenderPanic", out.Err)
	}
}

func TestHTTPRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/render" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>rendered</html>"))
	}))
	defer srv.Close()

	r := render.NewHTTPRenderer(srv.URL)
	c, err := r.Render(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if string(c.Body) != "<html>rendered</html>" {
		t.Errorf("body = %q", c.Body)
	}
	if c.ContentType != "text/html" {
		t.Errorf("content type = %q", c.ContentType)
	}
}

func TestHTTPRendererErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "render failed", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := render.NewHTTPRenderer(srv.URL)
	if _, err := r.Render(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
