package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports whether the service can accept and answer job requests
type HealthHandler struct {
	logger      *slog.Logger
	store       Pinger
	serviceName string
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "tts-api-service"
	}
	return &HealthHandler{
		logger:      deps.Logger,
		store:       deps.JobStore,
		serviceName: serviceName,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("Job store health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"service":   h.serviceName,
				"job_store": "unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
	})
}
