package router

import (
	"github.com/cuongbtq/voice-jobs/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", handler.NewHealthHandler(deps).Health)

	// finished artifacts
	if deps.OutputsDir != "" {
		r.Static("/outputs", deps.OutputsDir)
	}

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		tts := v1.Group("/tts")
		{
			tts.POST("/jobs", jobHandler.SubmitJob)
			tts.GET("/jobs/:job_id", jobHandler.GetJob)
			tts.GET("/queue", jobHandler.GetQueue)
		}
	}

	return r
}
