package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jirevwe/threadpool/config"
	"github.com/jirevwe/threadpool/faults"
	"github.com/jirevwe/threadpool/faults/sqlite"
	"github.com/jirevwe/threadpool/metrics"
	"github.com/jirevwe/threadpool/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type workload struct {
	tasks      int
	submitters int
	duration   time.Duration
	failEvery  int
	panicEvery int
}

// task returns the nth (1-based) synthetic task.
func (wl workload) task(n int) pool.Task {
	return pool.TaskFunc(func() error {
		if wl.duration > 0 {
			time.Sleep(wl.duration)
		}

		if wl.panicEvery > 0 && n%wl.panicEvery == 0 {
			panic(fmt.Sprintf("synthetic panic in task %d", n))
		}

		if wl.failEvery > 0 && n%wl.failEvery == 0 {
			return fmt.Errorf("synthetic failure in task %d", n)
		}

		return nil
	})
}

func run(ctx context.Context, cfg config.Config, wl workload, logger *slog.Logger) error {
	reporters := []faults.Reporter{faults.NewLogReporter(logger)}

	if cfg.Faults.DBPath != "" {
		archive, err := openArchive(ctx, cfg.Faults, logger)
		if err != nil {
			return err
		}
		defer archive.Close()

		reporters = append(reporters, archive)
	}

	opts := []pool.Option{
		pool.WithLogger(logger),
		pool.WithFaultReporter(faults.Multi(reporters...)),
		pool.WithQueueCapacity(cfg.QueueCapacity),
	}

	if cfg.Metrics.Enabled {
		reg := newRegistry()
		opts = append(opts, pool.WithMetrics(metrics.New(reg)))

		server, _, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	p, err := pool.New(cfg.Workers, opts...)
	if err != nil {
		return err
	}

	submitErr := submit(ctx, p, wl)

	if err := shutdown(ctx, p, cfg, logger); err != nil {
		return err
	}

	stats := p.Stats()
	logger.Info("workload finished",
		slog.Int64("submitted", stats.Submitted),
		slog.Int64("completed", stats.Completed),
		slog.Int64("failed", stats.Failed),
		slog.Int64("panicked", stats.Panicked),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("discarded", stats.Discarded),
	)

	if submitErr != nil && !errors.Is(submitErr, context.Canceled) {
		return submitErr
	}

	return nil
}

// submit spreads the workload over wl.submitters goroutines.
func submit(ctx context.Context, p pool.Pool, wl workload) error {
	submitters := max(wl.submitters, 1)

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < submitters; s++ {
		g.Go(func() error {
			for n := s + 1; n <= wl.tasks; n += submitters {
				if err := gctx.Err(); err != nil {
					return err
				}

				if err := p.AddWork(wl.task(n)); err != nil {
					return fmt.Errorf("cannot submit task %d: %w", n, err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// shutdown drains the pool when configured to, and discards queued work
// instead when ctx is done before or during the drain, or when draining runs
// out of time.
func shutdown(ctx context.Context, p pool.Pool, cfg config.Config, logger *slog.Logger) error {
	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	newCtx := func(parent context.Context) (context.Context, context.CancelFunc) {
		if timeout == 0 {
			return context.WithCancel(parent)
		}
		return context.WithTimeout(parent, timeout)
	}

	if cfg.Drain && ctx.Err() == nil {
		drainCtx, cancel := newCtx(ctx)
		err := p.Shutdown(drainCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			logger.Warn("interrupted while draining, discarding queued tasks")
		} else {
			logger.Warn("drain timed out, discarding queued tasks", "error", err)
		}
	}

	// ctx may already be done here, so in-flight tasks get their own deadline
	nowCtx, cancel := newCtx(context.Background())
	defer cancel()

	return p.ShutdownNow(nowCtx)
}

// openArchive opens the sqlite fault archive and prunes reports older than
// the configured retention.
func openArchive(ctx context.Context, cfg config.FaultsConfig, logger *slog.Logger) (*sqlite.Sqlite, error) {
	retention, err := cfg.RetentionPeriod()
	if err != nil {
		return nil, err
	}

	archive, err := sqlite.NewSqlite(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot open fault archive: %w", err)
	}

	if retention > 0 {
		pruned, err := archive.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			_ = archive.Close()
			return nil, fmt.Errorf("cannot prune fault archive: %w", err)
		}
		logger.Info("pruned fault archive", slog.Int64("removed", pruned), slog.Duration("retention", retention))
	}

	return archive, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveMetrics binds addr before returning, so a port that is already taken
// is reported to the caller. The returned address is the one actually bound.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return server, ln.Addr(), nil
}
