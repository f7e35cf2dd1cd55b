package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/internal/engine"
	"github.com/cuongbtq/voice-jobs/internal/segment"
)

// processJob drives one job from queued to a terminal status.
// Synthesis and merge failures end in a failed record and a nil return; a non-nil
// error means the job store could not be read or written and the job was abandoned.
func (w *Worker) processJob(ctx context.Context, jobID string) error {
	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			w.logger.Warn("Skipping message for unknown job", slog.String("job_id", jobID))
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.Status != domain.JobStatusQueued {
		w.logger.Warn("Skipping job that is not queued",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if err := job.Start(w.now()); err != nil {
		return err
	}
	if err := w.store.Put(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	chunks := w.segment(job)
	w.logger.Info("Processing job",
		slog.String("job_id", jobID),
		slog.Int("text_length", job.TextLength),
		slog.Int("chunks", len(chunks)),
	)

	start := time.Now()
	location, err := w.synthesize(ctx, job, chunks)
	if err != nil {
		var engineErr *domain.EngineError
		if !errors.As(err, &engineErr) {
			return err
		}

		w.logger.Error("Job failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		if err := job.Fail(w.now(), err.Error()); err != nil {
			return err
		}
		if err := w.store.Put(ctx, job); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	if err := job.Complete(w.now(), location); err != nil {
		return err
	}
	if err := w.store.Put(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	w.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("output", location),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (w *Worker) segment(job *domain.Job) []domain.Chunk {
	texts := segment.Split(job.Text, w.chunkSize)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:   domain.ChunkID{JobID: job.JobID, Index: i},
			Text: text,
		}
	}
	return chunks
}

// synthesize renders every chunk and returns the location of the final artifact.
// Engine and merge failures come back as *domain.EngineError; anything else is a store failure.
func (w *Worker) synthesize(ctx context.Context, job *domain.Job, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 1 {
		location, err := w.engine.Synthesize(ctx, engine.Request{
			Text:           chunks[0].Text,
			ReferenceAudio: job.SpeakerRef,
			Language:       job.Language,
			OutputPath:     job.OutputPath,
		})
		if err != nil {
			return "", domain.NewEngineError("synthesis failed", err)
		}
		return location, nil
	}

	outputDir := filepath.Dir(job.OutputPath)
	for i := range chunks {
		chunk := &chunks[i]

		location, err := w.engine.Synthesize(ctx, engine.Request{
			Text:           chunk.Text,
			ReferenceAudio: job.SpeakerRef,
			Language:       job.Language,
			OutputPath:     filepath.Join(outputDir, chunk.ID.String()+".wav"),
		})
		if err != nil {
			return "", domain.NewEngineError(fmt.Sprintf("synthesis failed on chunk %d/%d", i+1, len(chunks)), err)
		}
		chunk.Artifact = location

		if err := job.SetProgress(i+1, len(chunks)); err != nil {
			return "", err
		}
		if err := w.store.Put(ctx, job); err != nil {
			return "", fmt.Errorf("failed to record progress: %w", err)
		}
		w.logger.Debug("Chunk synthesized",
			slog.String("job_id", job.JobID),
			slog.String("progress", *job.Progress),
		)
	}

	artifacts := make([]string, len(chunks))
	for i, chunk := range chunks {
		artifacts[i] = chunk.Artifact
	}
	if err := w.merger.Merge(ctx, artifacts, job.OutputPath); err != nil {
		return "", domain.NewEngineError("merge failed", err)
	}
	return job.OutputPath, nil
}
