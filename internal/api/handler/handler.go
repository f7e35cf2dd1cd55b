package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/internal/jobs"
)

// JobService is what the HTTP layer needs from the job service
type JobService interface {
	Submit(ctx context.Context, owner domain.Owner, text, language string) (string, error)
	Status(ctx context.Context, jobID string) (*jobs.JobView, error)
	QueueDepth(ctx context.Context) (int, error)
}

var _ JobService = (*jobs.Service)(nil)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Jobs        JobService
	JobStore    Pinger
	OutputsDir  string
	ServiceName string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}
