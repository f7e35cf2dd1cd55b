package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string) domain.JobMessage {
	return domain.JobMessage{JobID: id}
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, msg(fmt.Sprint(i))))
	}

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, depth)

	for i := 0; i < 5; i++ {
		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), d.Message.JobID)
		assert.NoError(t, d.Ack())
	}

	depth, _ = q.Depth(ctx)
	assert.Equal(t, 0, depth)
}

func TestMemoryQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	got := make(chan string, 1)

	go func() {
		d, err := q.Dequeue(context.Background())
		if err == nil {
			got <- d.Message.JobID
		}
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before anything was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(context.Background(), msg("late")))

	select {
	case id := <-got:
		assert.Equal(t, "late", id)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not woken up")
	}
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(ctx, msg(fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}

	seen := make(map[string]bool)
	lastIndex := make(map[int]int)
	for n := 0; n < producers*perProducer; n++ {
		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		seen[d.Message.JobID] = true

		var p, i int
		_, err = fmt.Sscanf(d.Message.JobID, "%d-%d", &p, &i)
		require.NoError(t, err)
		if prev, ok := lastIndex[p]; ok {
			assert.Greater(t, i, prev, "per-producer order preserved")
		}
		lastIndex[p] = i
	}
	wg.Wait()

	assert.Len(t, seen, producers*perProducer)
}

func TestMemoryQueue_MultipleConsumersAllWoken(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			d, err := q.Dequeue(ctx)
			if err == nil {
				results <- d.Message.JobID
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, msg("a")))
	require.NoError(t, q.Enqueue(ctx, msg("b")))

	got := []string{<-results, <-results}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, msg("left-over")))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, msg("rejected")), ErrClosed)

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "left-over", d.Message.JobID)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  []uint64
	nacked map[uint64]bool
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nacked == nil {
		f.nacked = make(map[uint64]bool)
	}
	f.nacked[tag] = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeBroker struct {
	published  [][]byte
	deliveries chan amqp.Delivery
	depth      int
	publishErr error
}

func (f *fakeBroker) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, body)
	return nil
}

func (f *fakeBroker) Consume(string) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeBroker) QueueDepth() (int, error) {
	return f.depth, nil
}

func TestRabbitMQQueue_Enqueue(t *testing.T) {
	broker := &fakeBroker{}
	q := NewRabbitMQQueue(broker, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, q.Enqueue(context.Background(), msg("7d7cbe57-5f6c-4d55-8fa4-0d7d2f6f3b61")))
	require.Len(t, broker.published, 1)
	assert.JSONEq(t, `{"job_id":"7d7cbe57-5f6c-4d55-8fa4-0d7d2f6f3b61"}`, string(broker.published[0]))

	broker.publishErr = errors.New("channel closed")
	err := q.Enqueue(context.Background(), msg("x"))
	assert.ErrorContains(t, err, "channel closed")
}

func TestRabbitMQQueue_DequeueSkipsMalformed(t *testing.T) {
	ack := &fakeAcknowledger{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 3), depth: 2}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("not json")}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{"job_id":"nope"}`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"job_id":"7d7cbe57-5f6c-4d55-8fa4-0d7d2f6f3b61"}`)}

	q := NewRabbitMQQueue(broker, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	d, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7d7cbe57-5f6c-4d55-8fa4-0d7d2f6f3b61", d.Message.JobID)
	assert.Equal(t, map[uint64]bool{1: false, 2: false}, ack.nacked)

	require.NoError(t, d.Ack())
	assert.Equal(t, []uint64{3}, ack.acked)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	close(broker.deliveries)
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
