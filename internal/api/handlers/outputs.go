package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/logger"
)

// OutputsHandler lists generated artifacts
type OutputsHandler struct {
	store *artifact.Store
}

func NewOutputsHandler(store *artifact.Store) *OutputsHandler {
	return &OutputsHandler{store: store}
}

// List handles GET /api/v1/outputs
func (h *OutputsHandler) List(c *gin.Context) {
	entries, err := h.store.List()
	if err != nil {
		logger.Error("listing outputs failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dir":     h.store.Dir(),
		"count":   len(entries),
		"entries": entries,
	})
}
