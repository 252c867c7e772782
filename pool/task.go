package pool

import "time"

type Task interface {
	// Execute performs the work
	Execute() error

	// OnFailure handles any error returned from Execute(), a recovered panic
	// wrapped in *PanicError, or ErrTaskDiscarded
	OnFailure(error)
}

// Func adapts a plain function to Task. It has no failure handler; a panic
// inside it is still recovered by the worker and reported.
type Func func()

func (f Func) Execute() error {
	f()
	return nil
}

func (f Func) OnFailure(error) {}

// TaskFunc adapts a function that can fail to Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error {
	return f()
}

func (f TaskFunc) OnFailure(error) {}

// job is the envelope a task travels in through the queue
type job struct {
	id         string
	task       Task
	enqueuedAt time.Time

	// nil unless the task was submitted with Submit
	future *Future
}
