package queue

import (
	"context"
	"sync"

	"github.com/cuongbtq/voice-jobs/internal/domain"
)

// MemoryQueue is an unbounded in-process FIFO. Its contents do not survive a restart.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []domain.JobMessage
	closed bool
	// notify holds at most one wake-up token for blocked consumers
	notify chan struct{}
}

// NewMemoryQueue creates an empty queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends msg to the tail of the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, msg domain.JobMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue removes the head of the queue, blocking while it is empty
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = domain.JobMessage{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// pass the token on so another blocked consumer sees the rest
			if remaining > 0 {
				q.signal()
			}
			return &Delivery{Message: msg}, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			q.signal()
			return nil, ErrClosed
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Depth returns the number of queued messages
func (q *MemoryQueue) Depth(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// Close rejects further enqueues; consumers drain what is left and then get ErrClosed
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
