package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/shared/rabbitmq"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the subset of the RabbitMQ client the queue needs
type Broker interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	QueueDepth() (int, error)
}

var _ Broker = (*rabbitmq.Client)(nil)

// RabbitMQQueue publishes job messages to a durable RabbitMQ queue and consumes them
// with manual acknowledgement, so API and worker can run as separate processes.
type RabbitMQQueue struct {
	broker      Broker
	consumerTag string
	logger      *slog.Logger

	once       sync.Once
	deliveries <-chan amqp.Delivery
	consumeErr error
}

// NewRabbitMQQueue creates a queue on top of broker
func NewRabbitMQQueue(broker Broker, consumerTag string, logger *slog.Logger) *RabbitMQQueue {
	return &RabbitMQQueue{
		broker:      broker,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Enqueue publishes msg as a persistent JSON message
func (q *RabbitMQQueue) Enqueue(ctx context.Context, msg domain.JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := q.broker.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", msg.JobID, err)
	}
	return nil
}

// Dequeue waits for the next well-formed delivery. Malformed messages are rejected
// without requeue so they end up in the dead letter exchange, if one is configured.
func (q *RabbitMQQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	q.once.Do(func() {
		q.deliveries, q.consumeErr = q.broker.Consume(q.consumerTag)
	})
	if q.consumeErr != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", q.consumeErr)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case delivery, ok := <-q.deliveries:
			if !ok {
				q.logger.Warn("RabbitMQ delivery channel closed")
				return nil, ErrClosed
			}

			msg, err := parseMessage(delivery.Body)
			if err != nil {
				q.logger.Error("Rejecting malformed job message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					q.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			return &Delivery{
				Message: msg,
				ack:     func() error { return delivery.Ack(false) },
				nack:    func(requeue bool) error { return delivery.Nack(false, requeue) },
			}, nil
		}
	}
}

// Depth returns the number of ready messages reported by the broker
func (q *RabbitMQQueue) Depth(context.Context) (int, error) {
	return q.broker.QueueDepth()
}

func parseMessage(body []byte) (domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("invalid message JSON: %w", err)
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("invalid job_id %q: %w", msg.JobID, err)
	}
	return msg, nil
}
