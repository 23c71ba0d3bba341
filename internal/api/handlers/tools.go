package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/logger"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
)

// ToolsHandler serves the two tool pipelines over HTTP
type ToolsHandler struct {
	orch *pipeline.Orchestrator
}

func NewToolsHandler(orch *pipeline.Orchestrator) *ToolsHandler {
	return &ToolsHandler{orch: orch}
}

type convertRequest struct {
	WavFilePath string `json:"wav_file_path" binding:"required"`
	RenderSVG   *bool  `json:"render_svg"`

	// Timestamp overrides artifact naming, formatted as 20060102_150405.
	Timestamp string `json:"timestamp"`
}

type generateRequest struct {
	HummingFilePath string `json:"humming_file_path" binding:"required"`
	StylePrompt     string `json:"style_prompt"`
	GenerateScore   *bool  `json:"generate_score"`
}

// Convert handles POST /api/v1/score/convert
func (h *ToolsHandler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := pipeline.DefaultScoreOptions()
	if req.RenderSVG != nil {
		opts.RenderSVG = *req.RenderSVG
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(artifact.TimestampLayout, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must match " + artifact.TimestampLayout})
			return
		}
		opts.Timestamp = ts
	}

	result, err := h.orch.WavToMusicScore(c.Request.Context(), req.WavFilePath, opts)
	if err != nil {
		h.writePipelineError(c, err, result)
		return
	}

	body := gin.H{
		"success":    result.Success,
		"score_path": result.ScorePath,
		"note_count": result.NoteCount,
		"tempo":      result.Tempo,
		"key":        result.Key,
	}
	if result.ImagePath != "" {
		body["image_path"] = result.ImagePath
	}
	if len(result.SVG) > 0 {
		body["svg_base64"] = base64.StdEncoding.EncodeToString(result.SVG)
	}
	if result.RenderError != "" {
		body["render_error"] = result.RenderError
	}
	c.JSON(http.StatusOK, body)
}

// Generate handles POST /api/v1/humming/generate
func (h *ToolsHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := pipeline.DefaultHummingOptions()
	opts.StylePrompt = req.StylePrompt
	if req.GenerateScore != nil {
		opts.GenerateScore = *req.GenerateScore
	}

	result, err := h.orch.GenerateMusicFromHumming(c.Request.Context(), req.HummingFilePath, opts)
	if err != nil {
		h.writePipelineError(c, err, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writePipelineError maps a stage error onto an HTTP status and a
// structured error body.
func (h *ToolsHandler) writePipelineError(c *gin.Context, err error, partial interface{}) {
	status := http.StatusInternalServerError
	kind := pipeline.KindInternal
	stage := ""

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		kind = stageErr.Kind
		stage = stageErr.Stage
		switch stageErr.Kind {
		case pipeline.KindInput:
			status = http.StatusBadRequest
		case pipeline.KindModelUnavailable:
			status = http.StatusServiceUnavailable
		case pipeline.KindRenderTimeout, pipeline.KindGenerationTimeout:
			status = http.StatusGatewayTimeout
		case pipeline.KindRenderService, pipeline.KindGenerationService:
			status = http.StatusBadGateway
		}
	}

	logger.Error("tool pipeline failed", err, logger.WithContext(c))
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"kind":    string(kind),
		"stage":   stage,
		"partial": partial,
	})
}
