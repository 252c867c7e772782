// Package pool provides a fixed-size worker pool.
//
// A WorkerPool owns a set number of worker goroutines, started by New, that
// take tasks from one shared FIFO queue and run them to completion. Submitting
// never blocks and never waits for the task to start.
//
// # Basic Usage
//
//	p, err := pool.New(4)
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
//
//	_ = p.Execute(func() {
//	    // do work
//	})
//
// # Outcomes
//
// Submit returns a Future that completes with the task's error, a *PanicError
// when the task panicked, or ErrTaskDiscarded. A panicking task never takes
// its worker down; the fault is passed to Task.OnFailure and to the reporter
// set with WithFaultReporter.
//
// # Shutdown
//
// Shutdown stops accepting work, drains the queue and waits for every worker
// to exit. ShutdownNow discards what is still queued and only waits for tasks
// that are already running. Both honour the context deadline.
package pool
