package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jirevwe/threadpool/faults"
	"github.com/jirevwe/threadpool/metrics"
	"github.com/jirevwe/threadpool/queue"
	"github.com/oklog/ulid/v2"
)

type WorkerPool struct {
	// queue from which workers consume work
	tasks *queue.WorkQueue[*job]

	// ensure the pool can only be stopped once
	stop sync.Once

	// ensure the stopped message is only logged once
	stopped sync.Once

	// closed once every worker has returned
	done chan struct{}

	workers []*worker

	wg *sync.WaitGroup

	log *slog.Logger

	metrics *metrics.Metrics

	reporter faults.Reporter

	counters counters
}

// New creates a pool and starts numWorkers workers. It returns once every
// worker is waiting for work. numWorkers must be positive.
func New(numWorkers int, opts ...Option) (*WorkerPool, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, numWorkers)
	}

	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}

	p := &WorkerPool{
		tasks:    queue.NewBounded[*job](c.queueCapacity),
		done:     make(chan struct{}),
		workers:  make([]*worker, numWorkers),
		wg:       &sync.WaitGroup{},
		log:      c.logger,
		metrics:  c.metrics,
		reporter: c.reporter,
	}

	p.startWorkers()

	return p, nil
}

func (p *WorkerPool) startWorkers() {
	ready := &sync.WaitGroup{}
	ready.Add(len(p.workers))

	for i := 0; i < len(p.workers); i++ {
		w := newWorker(fmt.Sprintf("worker_%d", i+1), p.tasks, p.wg, p.log, &p.counters, p.metrics, p.reporter)
		p.workers[i] = w
		p.wg.Add(1)
		go w.Start(ready)
	}

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	ready.Wait()
	p.log.Info("worker pool started", slog.Int("workers", len(p.workers)))
}

// Execute queues fn and returns immediately. It never waits for fn to start.
func (p *WorkerPool) Execute(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	return p.enqueue(Func(fn), nil)
}

// AddWork adds work to the WorkerPool. It never blocks: it fails with
// ErrWorkerPoolClosed once shutdown has begun, or ErrQueueFull when a
// capacity was configured and is reached.
func (p *WorkerPool) AddWork(t Task) error {
	return p.enqueue(t, nil)
}

func (p *WorkerPool) Submit(t Task) (*Future, error) {
	f := newFuture()
	if err := p.enqueue(t, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *WorkerPool) enqueue(t Task, f *Future) error {
	if t == nil {
		return ErrNilTask
	}

	j := &job{
		id:         ulid.Make().String(),
		task:       t,
		enqueuedAt: time.Now(),
		future:     f,
	}
	if f != nil {
		f.id = j.id
	}

	// counted before Send: a worker may finish the task before Send returns
	p.counters.submitted.Add(1)
	p.metrics.Enqueuing()

	if err := p.tasks.Send(j); err != nil {
		p.counters.submitted.Add(-1)
		p.counters.rejected.Add(1)
		p.metrics.Rejected()

		if errors.Is(err, queue.ErrQueueClosed) {
			return ErrWorkerPoolClosed
		}
		return err
	}

	p.metrics.Submitted()

	return nil
}

// Shutdown closes the pool to new work, lets the workers finish everything
// already queued and waits for them to exit. If ctx ends first the workers
// keep draining in the background and a wrapped ctx error is returned.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.close()
	return p.wait(ctx)
}

// ShutdownNow closes the pool to new work and discards every queued task,
// calling its OnFailure with ErrTaskDiscarded. Tasks already running are
// waited for. It may follow a Shutdown whose ctx expired.
func (p *WorkerPool) ShutdownNow(ctx context.Context) error {
	p.close()
	p.discardPending()
	return p.wait(ctx)
}

func (p *WorkerPool) Stop() error {
	return p.Shutdown(context.Background())
}

// Done is closed once every worker has exited.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

func (p *WorkerPool) IsRunning() bool {
	return !p.tasks.Closed()
}

func (p *WorkerPool) Workers() int {
	return len(p.workers)
}

// Stats reads the outcome counters before Submitted, so a snapshot never
// shows more finished tasks than submitted ones.
func (p *WorkerPool) Stats() Stats {
	s := Stats{
		Workers:   len(p.workers),
		Completed: p.counters.completed.Load(),
		Failed:    p.counters.failed.Load(),
		Panicked:  p.counters.panicked.Load(),
		Discarded: p.counters.discarded.Load(),
		Active:    p.counters.active.Load(),
	}
	s.Pending = p.tasks.Len()
	s.Submitted = p.counters.submitted.Load()
	s.Rejected = p.counters.rejected.Load()

	return s
}

func (p *WorkerPool) close() {
	p.stop.Do(func() {
		p.log.Info("stopping worker pool", slog.Int("pending", p.tasks.Len()))

		// close the queue; workers exit once it is drained
		p.tasks.Close()
	})
}

func (p *WorkerPool) discardPending() {
	purged := p.tasks.Purge()
	if len(purged) == 0 {
		return
	}

	p.counters.discarded.Add(int64(len(purged)))
	p.metrics.Discarded(len(purged))
	p.log.Warn("discarded queued tasks", slog.Int("count", len(purged)))

	for _, j := range purged {
		safely(p.log, "task failure handler", func() { j.task.OnFailure(ErrTaskDiscarded) })
		j.future.complete(ErrTaskDiscarded)
	}
}

func (p *WorkerPool) wait(ctx context.Context) error {
	select {
	case <-p.done:
		p.logStopped()
		return nil
	default:
	}

	select {
	case <-p.done:
		p.logStopped()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

func (p *WorkerPool) logStopped() {
	p.stopped.Do(func() {
		p.log.Info("worker pool has been stopped")
	})
}
