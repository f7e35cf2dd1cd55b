package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/api/dto"
	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/cuongbtq/voice-jobs/internal/jobs"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubmitJob handles POST /api/v1/tts/jobs
// Queues a long-form synthesis job and returns its id
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	owner := domain.Owner{UserID: req.UserID, VoiceName: req.VoiceName}
	jobID, err := h.jobs.Submit(c.Request.Context(), owner, req.Text, req.Language)
	if err != nil {
		h.respondError(c, err, "Failed to submit job")
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusQueued),
	})
}

// GetJob handles GET /api/v1/tts/jobs/:job_id
// Returns the status view of a job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	// ids are always UUIDs, so anything else was never issued
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Debug("Job lookup with non-UUID id", slog.String("job_id", jobID))
		h.respondError(c, domain.ErrJobNotFound, "Failed to get job")
		return
	}

	view, err := h.jobs.Status(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, toJobResponse(view))
}

// GetQueue handles GET /api/v1/tts/queue
func (h *JobHandler) GetQueue(c *gin.Context) {
	depth, err := h.jobs.QueueDepth(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to read queue size")
		return
	}

	c.JSON(http.StatusOK, dto.QueueResponse{QueueSize: depth})
}

// respondError maps caller mistakes to 4xx with their message and hides everything else
func (h *JobHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error(fallback,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
	}
}

func toJobResponse(view *jobs.JobView) dto.JobResponse {
	return dto.JobResponse{
		JobID:       view.JobID,
		Status:      string(view.Status),
		CreatedAt:   view.CreatedAt.Format(time.RFC3339),
		QueueSize:   view.QueueSize,
		Progress:    view.Progress,
		StartedAt:   formatTime(view.StartedAt),
		AudioURL:    view.AudioURL,
		CompletedAt: formatTime(view.CompletedAt),
		Error:       view.Error,
		FailedAt:    formatTime(view.FailedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
