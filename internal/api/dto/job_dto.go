package dto

type SubmitJobRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	VoiceName string `json:"voice_name" binding:"required"`
	Text      string `json:"text"`
	Language  string `json:"language"`
}

type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the status view of a job; fields not relevant to the status are omitted
type JobResponse struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	QueueSize   *int    `json:"queue_size,omitempty"`
	Progress    *string `json:"progress,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	AudioURL    string  `json:"audio_url,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Error       string  `json:"error,omitempty"`
	FailedAt    string  `json:"failed_at,omitempty"`
}

type QueueResponse struct {
	QueueSize int `json:"queue_size"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
