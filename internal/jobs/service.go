// Package jobs accepts synthesis requests and answers status queries.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/internal/queue"
	"github.com/cuongbtq/voice-jobs/internal/storage"
	"github.com/cuongbtq/voice-jobs/internal/voice"
	"github.com/google/uuid"
)

// DefaultMaxTextLength is the submission limit in runes when none is configured
const DefaultMaxTextLength = 50000

// Config holds submission policy and output layout
type Config struct {
	OutputsDir         string
	PublicBaseURL      string
	MaxTextLength      int
	DefaultLanguage    string
	SupportedLanguages []string
}

// Service implements submission and status lookup on top of the store and queue
type Service struct {
	config Config
	store  storage.JobStore
	voices voice.Store
	queue  queue.Queue
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a job service
func NewService(config Config, store storage.JobStore, voices voice.Store, q queue.Queue, logger *slog.Logger) *Service {
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = DefaultMaxTextLength
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}

	return &Service{
		config: config,
		store:  store,
		voices: voices,
		queue:  q,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Submit validates the request, records a queued job and enqueues it.
// Nothing is recorded or enqueued when validation or voice lookup fails.
func (s *Service) Submit(ctx context.Context, owner domain.Owner, text, language string) (string, error) {
	if err := s.validate(owner, text); err != nil {
		return "", err
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = s.config.DefaultLanguage
	}
	if len(s.config.SupportedLanguages) > 0 && !slices.Contains(s.config.SupportedLanguages, language) {
		return "", domain.InvalidArgumentf("language %q is not supported", language)
	}

	speakerRef, err := s.voices.Resolve(ctx, owner)
	if err != nil {
		return "", err
	}

	jobID := s.newID()
	outputPath := filepath.Join(s.config.OutputsDir, owner.UserID, voice.Slug(owner.VoiceName), jobID+".wav")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	job := domain.NewJob(jobID, owner, text, language, speakerRef, outputPath, s.now().UTC())
	if err := s.store.Put(ctx, job); err != nil {
		return "", err
	}

	// the record stays queued if this fails; there is no sweep that retries it
	if err := s.queue.Enqueue(ctx, domain.JobMessage{JobID: jobID}); err != nil {
		s.logger.Error("Failed to enqueue job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", jobID),
		slog.String("user_id", owner.UserID),
		slog.String("voice_name", owner.VoiceName),
		slog.Int("text_length", job.TextLength),
		slog.String("language", language),
	)

	return jobID, nil
}

func (s *Service) validate(owner domain.Owner, text string) error {
	if strings.TrimSpace(owner.UserID) == "" {
		return domain.InvalidArgumentf("user_id is required")
	}
	if strings.TrimSpace(owner.VoiceName) == "" {
		return domain.InvalidArgumentf("voice_name is required")
	}
	if strings.TrimSpace(text) == "" {
		return domain.InvalidArgumentf("text is empty")
	}
	if n := utf8.RuneCountInString(text); n > s.config.MaxTextLength {
		return domain.InvalidArgumentf("text is %d characters, limit is %d", n, s.config.MaxTextLength)
	}
	return nil
}

// JobView is the externally visible projection of a job record
type JobView struct {
	JobID       string        `json:"job_id"`
	Status      domain.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	QueueSize   *int          `json:"queue_size,omitempty"`
	Progress    *string       `json:"progress,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	AudioURL    string        `json:"audio_url,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	FailedAt    *time.Time    `json:"failed_at,omitempty"`
}

// Status returns the view of a job, or domain.ErrJobNotFound
func (s *Service) Status(ctx context.Context, jobID string) (*JobView, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobView{
		JobID:     job.JobID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}

	switch job.Status {
	case domain.JobStatusQueued:
		depth, err := s.queue.Depth(ctx)
		if err != nil {
			s.logger.Warn("Failed to read queue depth", slog.String("error", err.Error()))
		} else {
			view.QueueSize = &depth
		}
	case domain.JobStatusProcessing:
		view.Progress = job.Progress
		view.StartedAt = job.StartedAt
	case domain.JobStatusCompleted:
		view.StartedAt = job.StartedAt
		view.CompletedAt = job.CompletedAt
		if job.ResultLocation != nil {
			view.AudioURL = s.audioURL(*job.ResultLocation)
		}
	case domain.JobStatusFailed:
		view.StartedAt = job.StartedAt
		view.FailedAt = job.FailedAt
		if job.Error != nil {
			view.Error = *job.Error
		}
	}

	return view, nil
}

// QueueDepth is the advisory number of jobs waiting for the worker
func (s *Service) QueueDepth(ctx context.Context) (int, error) {
	return s.queue.Depth(ctx)
}

// audioURL maps an artifact under OutputsDir to its public URL
func (s *Service) audioURL(location string) string {
	rel, err := filepath.Rel(s.config.OutputsDir, location)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return location
	}
	rel = filepath.ToSlash(rel)

	if s.config.PublicBaseURL == "" {
		return "/" + path.Join("outputs", rel)
	}
	base, err := url.Parse(s.config.PublicBaseURL)
	if err != nil {
		return location
	}
	return base.JoinPath(strings.Split(rel, "/")...).String()
}
