// Package queue provides an unbounded FIFO work queue shared by a pool of workers.
//
// Consumers block in Pop until an item is available. Close marks the end of work:
// consumers drain what is left and then receive ErrClosed, so producers and
// consumers may overlap in time without a worker exiting on a momentarily empty queue.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close, and by Pop once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a thread-safe unbounded FIFO queue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	// ready is closed and replaced whenever the queue state changes, waking every waiting Pop.
	ready chan struct{}
}

// New creates an empty, open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{})}
}

// Push appends an item to the tail of the queue.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.broadcast()
	return nil
}

// Close signals that no more items will be pushed. Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcast()
}

// Pop removes and returns the head of the queue, blocking while the queue is empty and open.
// It returns ErrClosed when the queue is closed and drained, or ctx.Err() if ctx is done first.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ready:
		}
	}
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// broadcast must be called with mu held.
func (q *Queue[T]) broadcast() {
	close(q.ready)
	q.ready = make(chan struct{})
}
