// Package queue carries job identifiers from submitters to the worker.
package queue

import (
	"context"
	"errors"

	"github.com/cuongbtq/voice-jobs/internal/domain"
)

// ErrClosed is returned by Dequeue once the queue has been closed and drained
var ErrClosed = errors.New("queue closed")

// Queue is a multi-producer FIFO consumed by the worker pool
type Queue interface {
	// Enqueue appends a message; it never waits for a consumer
	Enqueue(ctx context.Context, msg domain.JobMessage) error
	// Dequeue blocks until a message is available or ctx is done
	Dequeue(ctx context.Context) (*Delivery, error)
	// Depth is an advisory count of messages waiting for a consumer
	Depth(ctx context.Context) (int, error)
}

// Delivery is one dequeued message together with its acknowledgement hooks
type Delivery struct {
	Message domain.JobMessage

	ack  func() error
	nack func(requeue bool) error
}

// Ack confirms the message was handled
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack rejects the message, optionally returning it to the queue
func (d *Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}
