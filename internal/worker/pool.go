package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/voice-jobs/internal/queue"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop takes one job at a time off the queue until ctx is canceled or the queue closes
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				logger.Info("Worker goroutine stopping - context canceled")
			case errors.Is(err, queue.ErrClosed):
				logger.Info("Worker goroutine stopping - queue closed")
			default:
				logger.Error("Worker goroutine stopping - dequeue failed",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		jobID := delivery.Message.JobID
		logger.Info("Worker received job", slog.String("job_id", jobID))

		// a job that has started runs to completion even while shutting down
		err = w.processJob(context.WithoutCancel(ctx), jobID)

		if err != nil {
			logger.Error("Job processing aborted",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			if nackErr := delivery.Nack(false); nackErr != nil {
				logger.Error("Failed to NACK message",
					slog.String("job_id", jobID),
					slog.String("error", nackErr.Error()),
				)
			}
			continue
		}

		if ackErr := delivery.Ack(); ackErr != nil {
			logger.Error("Failed to ACK message",
				slog.String("job_id", jobID),
				slog.String("error", ackErr.Error()),
			)
		}
	}
}
