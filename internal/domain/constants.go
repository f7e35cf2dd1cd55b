package domain

// Status is the lifecycle stage of a job record
type Status string

// Job status constants
const (
	JobStatusQueued     Status = "queued"
	JobStatusProcessing Status = "processing"
	JobStatusCompleted  Status = "completed"
	JobStatusFailed     Status = "failed"
)

// DefaultChunkSize is the character budget of one synthesized chunk
const DefaultChunkSize = 1000

// IsTerminal reports whether no further transition is possible from s
func (s Status) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// isValidTransition enforces the allowed job state machine edges
func isValidTransition(from, to Status) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}
