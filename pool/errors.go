package pool

import (
	"errors"
	"fmt"

	"github.com/jirevwe/threadpool/queue"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is not active")

	ErrInvalidWorkerCount = errors.New("worker count must be positive")

	ErrNilTask = errors.New("task cannot be nil")

	// ErrTaskDiscarded is passed to OnFailure and futures of tasks that were
	// still queued when ShutdownNow ran
	ErrTaskDiscarded = errors.New("task discarded before execution")

	// ErrQueueFull is returned when a queue capacity was configured and is exhausted
	ErrQueueFull = queue.ErrQueueFull
)

// PanicError is the error a worker produces when a task panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
