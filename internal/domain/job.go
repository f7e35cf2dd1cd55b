package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Owner identifies the synthesis input: a user and one of their reference voices
type Owner struct {
	UserID    string `json:"user_id"`
	VoiceName string `json:"voice_name"`
}

// Job is the durable record of one submitted synthesis request
type Job struct {
	JobID          string     `json:"job_id" db:"job_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	VoiceName      string     `json:"voice_name" db:"voice_name"`
	Text           string     `json:"text" db:"text"`
	TextLength     int        `json:"text_length" db:"text_length"`
	Language       string     `json:"language" db:"language"`
	Status         Status     `json:"status" db:"status"`
	Progress       *string    `json:"progress,omitempty" db:"progress"`
	SpeakerRef     string     `json:"speaker_ref" db:"speaker_ref"`
	OutputPath     string     `json:"output_path" db:"output_path"`
	ResultLocation *string    `json:"result_location,omitempty" db:"result_location"`
	Error          *string    `json:"error,omitempty" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt       *time.Time `json:"failed_at,omitempty" db:"failed_at"`
}

// NewJob builds a queued job record
func NewJob(jobID string, owner Owner, text, language, speakerRef, outputPath string, now time.Time) *Job {
	return &Job{
		JobID:      jobID,
		UserID:     owner.UserID,
		VoiceName:  owner.VoiceName,
		Text:       text,
		TextLength: len([]rune(text)),
		Language:   language,
		Status:     JobStatusQueued,
		SpeakerRef: speakerRef,
		OutputPath: outputPath,
		CreatedAt:  now,
	}
}

// Start moves a queued job to processing
func (j *Job) Start(now time.Time) error {
	if err := j.transition(JobStatusProcessing); err != nil {
		return err
	}
	j.StartedAt = &now
	return nil
}

// SetProgress records that completed of total chunks are synthesized
func (j *Job) SetProgress(completed, total int) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: progress update while %s", ErrInvalidTransition, j.Status)
	}
	if total <= 0 || completed < 0 || completed > total {
		return fmt.Errorf("%w: progress %d/%d out of range", ErrInvalidArgument, completed, total)
	}
	if j.Progress != nil {
		prev, err := ParseProgress(*j.Progress)
		if err == nil && completed < prev.Completed {
			return fmt.Errorf("%w: progress %d/%d behind %s", ErrInvalidTransition, completed, total, prev)
		}
	}

	marker := Progress{Completed: completed, Total: total}.String()
	j.Progress = &marker
	return nil
}

// Complete finalizes a processing job with its result location
func (j *Job) Complete(now time.Time, location string) error {
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.ResultLocation = &location
	return nil
}

// Fail finalizes a processing job with a human readable error
func (j *Job) Fail(now time.Time, reason string) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	j.FailedAt = &now
	j.Error = &reason
	return nil
}

func (j *Job) transition(to Status) error {
	if !isValidTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Progress is the "completed/total" chunk counter persisted mid-job
type Progress struct {
	Completed int
	Total     int
}

func (p Progress) String() string {
	return strconv.Itoa(p.Completed) + "/" + strconv.Itoa(p.Total)
}

// ParseProgress parses a progress marker
func ParseProgress(s string) (Progress, error) {
	done, total, ok := strings.Cut(s, "/")
	if !ok {
		return Progress{}, fmt.Errorf("malformed progress marker %q", s)
	}

	c, err := strconv.Atoi(done)
	if err != nil {
		return Progress{}, fmt.Errorf("malformed progress marker %q: %w", s, err)
	}
	t, err := strconv.Atoi(total)
	if err != nil {
		return Progress{}, fmt.Errorf("malformed progress marker %q: %w", s, err)
	}

	return Progress{Completed: c, Total: t}, nil
}

// JobMessage is the queue payload; the record itself lives in the job store
type JobMessage struct {
	JobID string `json:"job_id"`
}

// ChunkID names one chunk of one job
type ChunkID struct {
	JobID string
	Index int
}

func (c ChunkID) String() string {
	return fmt.Sprintf("%s.part%04d", c.JobID, c.Index)
}

// Chunk is an ephemeral slice of a job's text and, once synthesized, its artifact
type Chunk struct {
	ID       ChunkID
	Text     string
	Artifact string
}
