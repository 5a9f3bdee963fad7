package bus

import (
	"context"
	"sync/atomic"

	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Task is a unit of engine work enqueued from a collaborator goroutine.
type Task func()

// Queue is a bounded, non-blocking task queue. In live mode every
// mutation of kernel state is funneled through one queue consumed by a
// single goroutine, so a fill report and a concurrent cancel can never
// race into an inconsistent order state.
type Queue struct {
	ch     chan Task
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Task, capacity)}
}

// TryPublish enqueues a task without blocking.
func (q *Queue) TryPublish(t Task) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrBusQueueClosed
	}
	select {
	case q.ch <- t:
		return nil
	default:
		return exception.ErrBusQueueFull
	}
}

// Close stops the queue from accepting new tasks.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run executes tasks until the context is done or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q.ch:
			if !ok {
				return
			}
			t()
		}
	}
}
