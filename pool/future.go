package pool

import "context"

// Future is completed exactly once, by the worker that ran the task or by
// ShutdownNow when the task is discarded.
type Future struct {
	id   string
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ID returns the task id the pool assigned on submission.
func (f *Future) ID() string { return f.id }

// Done is closed when the task has finished or was discarded.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the task outcome. It is nil until Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the task completes and returns its outcome, or returns
// ctx.Err() if ctx ends first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Future) complete(err error) {
	if f == nil {
		return
	}
	f.err = err
	close(f.done)
}
