// Package queue provides the FIFO that hands work from submitters to workers.
package queue

import (
	"errors"
	"sync"
)

var (
	// ErrQueueClosed is returned by Send once Close has been called
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned by Send on a bounded queue that is at capacity
	ErrQueueFull = errors.New("queue is full")
)

// compactThreshold is the number of consumed slots tolerated at the
// front of the backing slice before it is shifted down.
const compactThreshold = 64

// WorkQueue is a FIFO shared by any number of producers and consumers.
// Every item is handed to exactly one consumer. The lock is only held while
// an item is being added or removed.
type WorkQueue[T any] struct {
	mu sync.Mutex

	// signalled when an item is added or the queue is closed
	cond *sync.Cond

	// pending items live in items[head:]
	items []T
	head  int

	// zero means unbounded
	capacity int

	closed bool
}

// New returns an unbounded queue.
func New[T any]() *WorkQueue[T] {
	return NewBounded[T](0)
}

// NewBounded returns a queue that holds at most capacity pending items.
// A capacity of zero or less gives an unbounded queue.
func NewBounded[T any](capacity int) *WorkQueue[T] {
	if capacity < 0 {
		capacity = 0
	}

	q := &WorkQueue[T]{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends item to the queue and returns immediately.
func (q *WorkQueue[T]) Send(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if q.capacity > 0 && q.len() >= q.capacity {
		return ErrQueueFull
	}

	q.items = append(q.items, item)
	q.cond.Signal()

	return nil
}

// Receive blocks until an item is available or the queue is closed and empty.
// ok is false only in the latter case. Items sent before Close are still
// delivered.
func (q *WorkQueue[T]) Receive() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.len() == 0 {
		if q.closed {
			return item, false
		}
		q.cond.Wait()
	}

	item = q.items[q.head]

	// drop the queue's reference so the consumer owns the item exclusively
	var zero T
	q.items[q.head] = zero
	q.head++
	q.compact()

	return item, true
}

// Close stops the queue from accepting new items and wakes every blocked
// receiver. It is safe to call more than once.
func (q *WorkQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.cond.Broadcast()
}

// Purge removes every pending item and returns them in queue order.
func (q *WorkQueue[T]) Purge() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.len() == 0 {
		return nil
	}

	purged := make([]T, q.len())
	copy(purged, q.items[q.head:])

	clear(q.items)
	q.items = q.items[:0]
	q.head = 0

	return purged
}

// Len returns the number of pending items.
func (q *WorkQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

// Cap returns the configured capacity, zero when unbounded.
func (q *WorkQueue[T]) Cap() int {
	return q.capacity
}

// Closed reports whether Close has been called.
func (q *WorkQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *WorkQueue[T]) len() int {
	return len(q.items) - q.head
}

// compact must be called with mu held.
func (q *WorkQueue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}

	if q.head < compactThreshold || q.head*2 < len(q.items) {
		return
	}

	n := copy(q.items, q.items[q.head:])
	clear(q.items[n:])
	q.items = q.items[:n]
	q.head = 0
}
