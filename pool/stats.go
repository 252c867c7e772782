package pool

import "sync/atomic"

// Stats is a point-in-time view of the pool. Completed counts tasks that
// returned nil; Failed and Panicked count the other two outcomes.
type Stats struct {
	Workers   int
	Pending   int
	Active    int64
	Submitted int64
	Completed int64
	Failed    int64
	Panicked  int64
	Rejected  int64
	Discarded int64
}

type counters struct {
	active    atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64
}
