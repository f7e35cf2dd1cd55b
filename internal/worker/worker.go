// Package worker drains the job queue and drives each job through synthesis.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/internal/engine"
	"github.com/cuongbtq/voice-jobs/internal/queue"
	"github.com/cuongbtq/voice-jobs/internal/storage"
)

// Merger joins chunk artifacts into the final output and removes the inputs
type Merger interface {
	Merge(ctx context.Context, inputs []string, output string) error
}

// Config holds worker dependencies and settings
type Config struct {
	Logger      *slog.Logger
	Store       storage.JobStore
	Queue       queue.Queue
	Engine      engine.Synthesizer
	Merger      Merger
	WorkerID    string
	Concurrency int
	ChunkSize   int
}

// Worker represents the background synthesis worker
type Worker struct {
	logger      *slog.Logger
	store       storage.JobStore
	queue       queue.Queue
	engine      engine.Synthesizer
	merger      Merger
	workerID    string
	concurrency int
	chunkSize   int
	now         func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = domain.DefaultChunkSize
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker"
	}

	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		queue:       cfg.Queue,
		engine:      cfg.Engine,
		merger:      cfg.Merger,
		workerID:    workerID,
		concurrency: concurrency,
		chunkSize:   chunkSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start spawns the worker pool and returns. Jobs are consumed until Stop is called
// or ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("chunk_size", w.chunkSize),
	)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.spawnWorkerPool(runCtx)
	return nil
}

// Stop stops taking new jobs and waits for the jobs in flight to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}

	w.logger.Info("Stopping worker...")
	cancel()
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// Wait blocks until every worker goroutine has exited
func (w *Worker) Wait() {
	w.wg.Wait()
}
