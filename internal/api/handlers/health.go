package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModelProbe reports whether the local transcription model can run.
type ModelProbe interface {
	Name() string
	Available() bool
}

// HealthHandler reports service health and capability status
type HealthHandler struct {
	version     string
	model       ModelProbe
	verovioURL  string
	musicGenURL string
}

func NewHealthHandler(version string, model ModelProbe, verovioURL, musicGenURL string) *HealthHandler {
	return &HealthHandler{
		version:     version,
		model:       model,
		verovioURL:  verovioURL,
		musicGenURL: musicGenURL,
	}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	modelName := ""
	modelStatus := "unavailable"
	if h.model != nil {
		modelName = h.model.Name()
		if h.model.Available() {
			modelStatus = "available"
		}
	}

	renderStatus := "disabled"
	if h.verovioURL != "" {
		renderStatus = "enabled"
	}

	generateStatus := "disabled"
	if h.musicGenURL != "" {
		generateStatus = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": h.version,
		"pitch_model": gin.H{
			"name":   modelName,
			"status": modelStatus,
		},
		"renderer": gin.H{
			"status": renderStatus,
			"url":    h.verovioURL,
		},
		"generator": gin.H{
			"status": generateStatus,
			"url":    h.musicGenURL,
		},
	})
}
