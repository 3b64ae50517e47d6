// Package callqueue implements the bounded FIFO that couples
// application threads to the supervisor: enqueue never blocks, and
// the supervisor polls dequeue at its own cadence rather than waiting
// on a condition variable.
package callqueue

import (
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

// DefaultCapacity is the bound used when none is configured.
const DefaultCapacity = 50

// Queue is a bounded, mutex-protected FIFO of faas.Call records.
type Queue struct {
	mu       sync.Mutex
	items    []faas.Call
	capacity int
}

// New creates a queue with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Capacity returns the queue's configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Enqueue appends call to the tail. It returns false, without
// modifying the queue, if the queue is at capacity.
func (q *Queue) Enqueue(call faas.Call) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, call)
	return true
}

// Dequeue removes and returns the head call. ok is false if the queue
// is empty.
func (q *Queue) Dequeue() (call faas.Call, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return faas.Call{}, false
	}
	call = q.items[0]
	q.items = q.items[1:]
	return call, true
}

// Len returns the current number of queued calls.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain empties the queue and returns everything that was in it, in
// FIFO order. Used by the facade on Stop() to account for discarded
// in-flight work.
func (q *Queue) Drain() []faas.Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
