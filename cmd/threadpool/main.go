// Package main runs a synthetic workload through the worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jirevwe/threadpool/config"
)

var version = "dev"

func main() {
	var (
		configFile   = flag.String("config", "", "config file path (YAML/JSON)")
		workers      = flag.Int("workers", 0, "number of workers, overrides the config file")
		tasks        = flag.Int("tasks", 1000, "number of synthetic tasks to submit")
		submitters   = flag.Int("submitters", 4, "number of goroutines submitting tasks")
		taskDuration = flag.Duration("task-duration", 10*time.Millisecond, "how long each task sleeps")
		failEvery    = flag.Int("fail-every", 0, "every nth task returns an error (0 disables)")
		panicEvery   = flag.Int("panic-every", 0, "every nth task panics (0 disables)")
		metricsAddr  = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		faultsDB     = flag.String("faults-db", "", "sqlite file to archive task faults in")
		retention    = flag.Duration("faults-retention", 0, "prune archived faults older than this at startup (0 keeps the config value)")
		showVersion  = flag.Bool("version", false, "print the version")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `threadpool - fixed-size worker pool demo

Usage:
  threadpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 8 workers, 10k tasks, one in fifty panics
  threadpool --workers 8 --tasks 10000 --panic-every 50

  # settings from a file, metrics on :9090
  threadpool --config pool.yaml --metrics-addr :9090

  # archive faults, keeping a week of history
  threadpool --faults-db faults.db --faults-retention 168h --fail-every 20
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("threadpool version %s\n", version)
		return
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}
	if *faultsDB != "" {
		cfg.Faults.DBPath = *faultsDB
	}
	if *retention > 0 {
		cfg.Faults.Retention = retention.String()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wl := workload{
		tasks:      *tasks,
		submitters: *submitters,
		duration:   *taskDuration,
		failEvery:  *failEvery,
		panicEvery: *panicEvery,
	}

	if err := run(ctx, cfg, wl, logger); err != nil {
		logger.Error("threadpool failed", "error", err)
		stop()
		os.Exit(1)
	}
}
