// Command pagewatchd runs the pagewatch engine: the scheduler tick loop,
// the render worker pool, and the HTTP facade over the result cache.
//
// Configuration is taken from the environment:
//
//	PAGEWATCH_STORE   memory | redis | postgres (default memory)
//	PAGEWATCH_JOBS    path to the jobs JSON file (default jobs.json)
//	RENDERER_URL      base URL of the render engine (default http://localhost:9222)
//	REDIS_ADDR        redis address, for PAGEWATCH_STORE=redis
//	POSTGRES_URL      connection URL, for PAGEWATCH_STORE=postgres
//	PORT              HTTP listen port (default 8080)
//
// With -once the daemon performs a single scheduling pass, waits for the
// dispatched renders to finish, and exits. Intended for external cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/engine"
	"github.com/pagewatch/pagewatch/hook"
	"github.com/pagewatch/pagewatch/middleware"
	"github.com/pagewatch/pagewatch/observability"
	"github.com/pagewatch/pagewatch/render"
	"github.com/pagewatch/pagewatch/store"
	"github.com/pagewatch/pagewatch/store/memory"
	"github.com/pagewatch/pagewatch/store/postgres"
	redisstore "github.com/pagewatch/pagewatch/store/redis"
)

func main() {
	once := flag.Bool("once", false, "run one scheduling pass and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger, *once); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	renderer := render.NewHTTPRenderer(envOr("RENDERER_URL", "http://localhost:9222"))

	eng, err := engine.New(
		engine.WithStore(st),
		engine.WithRenderer(renderer),
		engine.WithJobsFile(envOr("PAGEWATCH_JOBS", "jobs.json")),
		engine.WithLogger(logger),
		engine.WithHooks(hooksWithMetrics(logger)),
		engine.WithMiddleware(middleware.Metrics(), middleware.Tracing()),
	)
	if err != nil {
		return err
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	if once {
		return runOnce(ctx, eng, logger)
	}

	srv := &http.Server{
		Addr:              ":" + envOr("PORT", "8080"),
		Handler:           eng.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", srv.Addr)
		if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
			errCh <- serr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	return eng.Stop(shutdownCtx)
}

// runOnce drives a single tick and waits for the dispatched attempts to
// drain before stopping.
func runOnce(ctx context.Context, eng *engine.Engine, logger *slog.Logger) error {
	dispatched, err := eng.TickNow(ctx)
	if err != nil {
		return err
	}
	logger.Info("single pass dispatched", "count", dispatched)

	deadline := time.After(pagewatch.DefaultConfig().ShutdownTimeout)
	for {
		stats := eng.Scheduler().Stats()
		if stats.InFlight == 0 && eng.Pool().QueueDepth() == 0 {
			break
		}
		select {
		case <-deadline:
			logger.Warn("attempts still in flight at deadline")
			return eng.Stop(context.Background())
		case <-ctx.Done():
			return eng.Stop(context.Background())
		case <-time.After(50 * time.Millisecond):
		}
	}
	return eng.Stop(context.Background())
}

func buildStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	switch backend := envOr("PAGEWATCH_STORE", "memory"); backend {
	case "memory":
		return memory.New(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr: envOr("REDIS_ADDR", "localhost:6379"),
		})
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	case "postgres":
		url := os.Getenv("POSTGRES_URL")
		if url == "" {
			return nil, fmt.Errorf("POSTGRES_URL required for postgres store")
		}
		return postgres.New(ctx, url, postgres.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// hooksWithMetrics builds the hook registry with the OpenTelemetry
// lifecycle metrics attached.
func hooksWithMetrics(logger *slog.Logger) *hook.Registry {
	r := hook.NewRegistry(logger)
	r.Register(observability.NewMetricsHook())
	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
