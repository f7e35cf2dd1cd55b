package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/nats-io/nats.go"
)

// NatsStore keeps job records in a JetStream key-value bucket, one key per job
type NatsStore struct {
	bucket string
	kv     nats.KeyValue
}

// NewNatsStore binds to bucket, creating it on first use
func NewNatsStore(js nats.JetStreamContext, bucket string) (*NatsStore, error) {
	kv, err := js.KeyValue(bucket)
	if err != nil {
		if !errors.Is(err, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to bind key-value bucket '%s': %w", bucket, err)
		}

		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "Text-to-speech job records",
			History:     1,
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create key-value bucket '%s': %w", bucket, err)
		}
	}

	return &NatsStore{
		bucket: bucket,
		kv:     kv,
	}, nil
}

// Put stores the record as the latest revision of its key
func (s *NatsStore) Put(_ context.Context, job *domain.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	if _, err := s.kv.Put(job.JobID, data); err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	return nil
}

// Get loads the latest revision for jobID
func (s *NatsStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	entry, err := s.kv.Get(jobID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrInvalidKey) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.NewStoreError("get", jobID, err)
	}

	job, err := decodeJob(entry.Value())
	if err != nil {
		return nil, domain.NewStoreError("get", jobID, err)
	}
	return job, nil
}
