package pool

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jirevwe/threadpool/faults"
	"github.com/jirevwe/threadpool/metrics"
	"github.com/jirevwe/threadpool/queue"
)

type worker struct {
	// the worker id
	id string

	// queue from which the worker consumes work
	tasks *queue.WorkQueue[*job]

	// used to signal the pool to clean itself up
	wg *sync.WaitGroup

	log *slog.Logger

	counters *counters
	metrics  *metrics.Metrics
	reporter faults.Reporter
}

func newWorker(id string, tasks *queue.WorkQueue[*job], wg *sync.WaitGroup, log *slog.Logger, c *counters, m *metrics.Metrics, reporter faults.Reporter) *worker {
	return &worker{
		id:       id,
		wg:       wg,
		log:      log.With(slog.String("worker_id", id)),
		tasks:    tasks,
		counters: c,
		metrics:  m,
		reporter: reporter,
	}
}

// Start runs the worker loop until the queue is closed and drained. ready is
// released once the worker is about to wait for its first task.
func (w *worker) Start(ready *sync.WaitGroup) {
	w.log.Debug("starting worker")
	w.metrics.WorkerStarted()

	defer func() {
		w.metrics.WorkerStopped()
		w.log.Debug("worker has been stopped")
		w.wg.Done()
	}()

	ready.Done()

	for {
		j, ok := w.tasks.Receive()
		if !ok {
			w.log.Debug("stopping worker with closed queue")
			return
		}

		w.process(j)
	}
}

func (w *worker) process(j *job) {
	w.counters.active.Add(1)
	w.metrics.Started(time.Since(j.enqueuedAt))
	w.log.Debug("starting task", slog.String("task_id", j.id))

	start := time.Now()
	err := w.execute(j.task)
	took := time.Since(start)

	w.counters.active.Add(-1)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = w.fail(j, err)
	} else {
		w.counters.completed.Add(1)
	}

	w.metrics.Finished(outcome, took)
	w.log.Debug("finished task", slog.String("task_id", j.id), slog.Duration("took", took))

	j.future.complete(err)
}

// execute runs the task on this goroutine, turning a panic into a *PanicError
// so the worker survives it.
func (w *worker) execute(t Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	return t.Execute()
}

func (w *worker) fail(j *job, err error) string {
	kind, outcome := faults.KindError, metrics.OutcomeError

	var stack []byte
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		kind, outcome = faults.KindPanic, metrics.OutcomePanic
		stack = panicErr.Stack
		w.counters.panicked.Add(1)
	} else {
		w.counters.failed.Add(1)
	}

	w.log.Error("task failed", slog.String("task_id", j.id), slog.String("kind", string(kind)), slog.String("error", err.Error()))

	safely(w.log, "task failure handler", func() { j.task.OnFailure(err) })

	if w.reporter != nil {
		safely(w.log, "fault reporter", func() {
			report := faults.NewReport(j.id, w.id, kind, err, stack)
			if reportErr := w.reporter.Report(context.Background(), report); reportErr != nil {
				w.log.Warn("cannot report task fault", slog.String("task_id", j.id), slog.String("error", reportErr.Error()))
			}
		})
	}

	return outcome
}

// safely runs fn and logs instead of propagating a panic from it.
func safely(log *slog.Logger, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(name+" panicked", slog.Any("panic", rec))
		}
	}()

	fn()
}
