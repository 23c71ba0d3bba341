package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ykzou1214/musictoolkit/internal/api/handlers"
	"github.com/ykzou1214/musictoolkit/internal/api/middleware"
	"github.com/ykzou1214/musictoolkit/internal/config"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
)

// SetupRouter wires the HTTP surface around the orchestrator.
func SetupRouter(orch *pipeline.Orchestrator, model handlers.ModelProbe, cfg *config.Config, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(middleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(middleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(middleware.RequestTracking())

	// CORS middleware
	router.Use(middleware.CORS())

	// Health check with capability status
	healthHandler := handlers.NewHealthHandler(version, model, cfg.VerovioURL, cfg.MusicGenURL)
	router.GET("/health", healthHandler.HealthCheck)

	toolsHandler := handlers.NewToolsHandler(orch)
	outputsHandler := handlers.NewOutputsHandler(orch.Store())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/score/convert", toolsHandler.Convert)
		v1.POST("/humming/generate", toolsHandler.Generate)
		v1.GET("/outputs", outputsHandler.List)
	}

	return router
}
