// Package storage persists job records.
//
// Every implementation writes a record atomically: a concurrent Get sees either the
// previous version or the new one, never a partial write.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/voice-jobs/internal/domain"
)

// JobStore is a durable map from job id to job record
type JobStore interface {
	// Put creates or replaces the record for job.JobID
	Put(ctx context.Context, job *domain.Job) error
	// Get returns domain.ErrJobNotFound when no record exists
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

func encodeJob(job *domain.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (*domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
