// Package main is the entrypoint for the ResearchMate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/researchmate/internal/api"
	"github.com/kiranshivaraju/researchmate/internal/api/handler"
	mw "github.com/kiranshivaraju/researchmate/internal/api/middleware"
	"github.com/kiranshivaraju/researchmate/internal/cache"
	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/dispatch"
	"github.com/kiranshivaraju/researchmate/internal/jobs"
	"github.com/kiranshivaraju/researchmate/internal/metrics"
	"github.com/kiranshivaraju/researchmate/internal/pipeline"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/internal/textgen"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"store", cfg.Store.Driver,
		"queue", cfg.Queue.Driver,
		"textgen_provider", cfg.TextGen.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.stopWorkers(shutdownCtx); err != nil {
		// whatever is still pending is requeued on the next start
		slog.Warn("workers did not drain before shutdown deadline", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// app is the fully wired server: storage, cache, text service, pipelines,
// job runner, dispatcher and HTTP router.
type app struct {
	service      *jobs.Service
	router       http.Handler
	startWorkers func(ctx context.Context) error
	stopWorkers  func(ctx context.Context) error
	closers      []func()
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// 2. Store
	st, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	if err := st.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}
	slog.Info("store ready", "driver", cfg.Store.Driver)

	// 3. Cache
	ca, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	if c, ok := ca.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}
	if err := ca.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	slog.Info("cache ready", "redis", cfg.Cache.RedisURL != "")

	// 4. Text service and pipelines
	m := metrics.New()
	gen, err := textgen.NewProvider(cfg.TextGen)
	if err != nil {
		return nil, fmt.Errorf("create text generator: %w", err)
	}
	slog.Info("text generator initialized", "provider", gen.Name())

	composer, err := pipeline.NewComposer(m.InstrumentTextGenerator(gen), textgen.DefaultParams(cfg.TextGen), pipeline.Builtin()...)
	if err != nil {
		return nil, fmt.Errorf("build pipelines: %w", err)
	}

	// 5. Runner and dispatcher
	runner := jobs.NewRunner(st, composer, ca, cfg.Cache.TTL, m)
	dispatcher, err := a.newDispatcher(cfg.Queue, runner.Run)
	if err != nil {
		return nil, err
	}

	a.service = jobs.NewService(jobs.Deps{
		Store:      st,
		Dispatcher: dispatcher,
		Composer:   composer,
		Cache:      ca,
		CacheTTL:   cfg.Cache.TTL,
		Metrics:    m,
	})

	// 6. Router
	a.router = api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth.APIKeyHashes),
		RateLimit: mw.NewRateLimit(ca, cfg.RateLimit.RequestsPerMinute),
		Metrics:   m,

		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{"store": st, "cache": ca}),
		SubmitHandler: handler.NewSubmitHandler(a.service),
		StatusHandler: handler.NewStatusHandler(a.service),
		ResultHandler: handler.NewResultHandler(a.service),
	})

	return a, nil
}

// start repairs jobs left behind by a previous process, then starts the
// workers. Interrupted jobs are failed before any worker can claim a job.
func (a *app) start(ctx context.Context) error {
	if _, err := a.service.FailInterrupted(ctx); err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	if err := a.startWorkers(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	if _, err := a.service.Requeue(ctx); err != nil {
		return fmt.Errorf("requeue jobs: %w", err)
	}
	return nil
}

// newDispatcher builds the dispatcher and its workers without starting them.
func (a *app) newDispatcher(cfg config.QueueConfig, run dispatch.Handler) (dispatch.Dispatcher, error) {
	switch cfg.Driver {
	case config.QueueAMQP:
		conn, err := dispatch.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })

		pub, err := dispatch.NewAMQPPublisher(conn, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })

		consumer, err := dispatch.NewAMQPConsumer(conn, cfg.AMQPQueue, cfg.Workers, run)
		if err != nil {
			return nil, err
		}
		a.startWorkers = consumer.Start
		a.stopWorkers = consumer.Stop
		return pub, nil

	default:
		q := dispatch.NewQueue(cfg.Workers, cfg.Depth, run)
		a.startWorkers = func(ctx context.Context) error {
			q.Start(ctx)
			return nil
		}
		a.stopWorkers = q.Stop
		return q, nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
