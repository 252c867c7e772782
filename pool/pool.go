package pool

import "context"

type Pool interface {
	// Execute queues fn to run on a worker and returns immediately
	Execute(fn func()) error

	// AddWork queues a task for the worker pool to process. It is only valid
	// before Stop() has been called.
	AddWork(Task) error

	// Submit queues a task and returns a Future that completes with the
	// task's outcome
	Submit(Task) (*Future, error)

	// Shutdown stops accepting work, lets the workers drain the queue and
	// waits for them to exit or for ctx to end
	Shutdown(context.Context) error

	// ShutdownNow stops accepting work, discards everything still queued and
	// waits for in-flight tasks to return or for ctx to end
	ShutdownNow(context.Context) error

	// Stop is Shutdown without a deadline. It can be called more than once.
	Stop() error

	// Workers returns the fixed number of workers
	Workers() int

	// Stats returns a snapshot of the pool counters
	Stats() Stats
}

var _ Pool = (*WorkerPool)(nil)
