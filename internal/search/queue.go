package search

import "sync"

// opQueue is a thread-safe FIFO of pending operations.
//
// Commits enqueue while a previous flush may still be submitting batches;
// Drain hands the flusher everything queued so far in one step.
type opQueue struct {
	mu     sync.Mutex
	ops    []Operation
	closed bool
}

func newOpQueue() *opQueue {
	return &opQueue{ops: make([]Operation, 0, 64)}
}

// Enqueue appends ops. Returns false if the queue is closed.
func (q *opQueue) Enqueue(ops ...Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.ops = append(q.ops, ops...)
	return true
}

// Drain removes and returns every queued operation in order.
func (q *opQueue) Drain() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.ops
	q.ops = make([]Operation, 0, 64)
	return out
}

// Clear drops every queued operation.
func (q *opQueue) Clear() {
	q.Drain()
}

// Len returns the number of queued operations.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close rejects further enqueues.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
