package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/voice-jobs/internal/domain"
)

// FileStore keeps one JSON document per job under a directory
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted at it
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create jobs directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes the record to a temp file in the same directory and renames it into place
func (s *FileStore) Put(_ context.Context, job *domain.Job) error {
	path, err := s.path(job.JobID)
	if err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}

	data, err := encodeJob(job)
	if err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+job.JobID+".*.tmp")
	if err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.NewStoreError("put", job.JobID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.NewStoreError("put", job.JobID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return domain.NewStoreError("put", job.JobID, err)
	}
	return nil
}

// Get reads the record for jobID
func (s *FileStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	path, err := s.path(jobID)
	if err != nil {
		return nil, domain.ErrJobNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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

func (s *FileStore) path(jobID string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.HasPrefix(jobID, ".") {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	return filepath.Join(s.dir, jobID+".json"), nil
}

// Ping checks that the jobs directory is still present
func (s *FileStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("jobs directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("jobs directory %s is not a directory", s.dir)
	}
	return nil
}
