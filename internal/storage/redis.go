package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces job keys
const DefaultRedisKeyPrefix = "tts:job:"

// RedisStore keeps each record as a JSON string under <prefix><job_id>
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store; ttl of zero keeps records forever
func NewRedisStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Put replaces the record with a single SET
func (s *RedisStore) Put(ctx context.Context, job *domain.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	if err := s.client.Set(ctx, s.key(job.JobID), data, s.ttl).Err(); err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	return nil
}

// Get loads the record for jobID
func (s *RedisStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.NewStoreError("get", jobID, err)
	}

	job, err := decodeJob(data)
	if err != nil {
		return nil, domain.NewStoreError("get", jobID, err)
	}
	return job, nil
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}
