package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a submission is rejected before it is enqueued
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is the root of every lookup miss
	ErrNotFound = errors.New("not found")

	// ErrJobNotFound is returned when a job record does not exist
	ErrJobNotFound = fmt.Errorf("job %w", ErrNotFound)

	// ErrVoiceNotFound is returned when the owner's reference audio does not exist
	ErrVoiceNotFound = fmt.Errorf("voice %w", ErrNotFound)

	// ErrInvalidTransition is returned when a status change would break the job state machine
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// EngineError wraps a failure raised by the synthesis engine or the audio merge
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new engine error for the given operation
func NewEngineError(op string, err error) error {
	return &EngineError{Op: op, Err: err}
}

// StoreError wraps a job store read or write failure
type StoreError struct {
	Op    string
	JobID string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("job store %s %s: %v", e.Op, e.JobID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error
func NewStoreError(op, jobID string, err error) error {
	return &StoreError{Op: op, JobID: jobID, Err: err}
}

// InvalidArgumentf builds an ErrInvalidArgument with a message
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
