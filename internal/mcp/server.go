// Package mcp exposes the tool pipelines over the Model Context
// Protocol so that agent hosts can call them directly.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/logger"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
)

const outputResourceURI = "musictoolkit://output"

// Server wraps the MCP SDK server around the pipeline orchestrator.
type Server struct {
	MCPServer *sdkmcp.Server

	orch  *pipeline.Orchestrator
	store *artifact.Store
}

// NewServer creates an MCP server with the two music tools, the output
// directory resource, and the guidance prompt registered.
func NewServer(orch *pipeline.Orchestrator, store *artifact.Store, version string) *Server {
	s := &Server{orch: orch, store: store}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "musictoolkit", Version: version},
		nil,
	)
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// Run serves MCP over the given transport until ctx is done.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "wav_to_music_score",
		Description: "Convert a WAV recording into a MusicXML score via pitch detection, optionally rendering an SVG image of the score.",
	}, s.handleWavToMusicScore)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_music_from_humming",
		Description: "Generate a full music track from a hummed melody using a melody-conditioned generation model, optionally producing a score of the result.",
	}, s.handleGenerateMusicFromHumming)
}

// --- Tool input/output types ---

type wavToScoreInput struct {
	WavFilePath string `json:"wav_file_path" jsonschema:"path to the input WAV file"`
	RenderSVG   *bool  `json:"render_svg,omitempty" jsonschema:"render an SVG image of the score (default true)"`
}

type wavToScoreOutput struct {
	Success     bool    `json:"success"`
	ScorePath   string  `json:"score_path,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
	NoteCount   int     `json:"note_count"`
	Tempo       float64 `json:"tempo,omitempty"`
	Key         string  `json:"key,omitempty"`
	SVGBase64   string  `json:"svg_base64,omitempty"`
	RenderError string  `json:"render_error,omitempty"`
}

type hummingInput struct {
	HummingFilePath string `json:"humming_file_path" jsonschema:"path to the hummed melody WAV file"`
	StylePrompt     string `json:"style_prompt,omitempty" jsonschema:"text description of the desired musical style"`
	GenerateScore   *bool  `json:"generate_score,omitempty" jsonschema:"also produce a score of the generated track (default true)"`
}

type hummingOutput struct {
	Success     bool              `json:"success"`
	TrackPath   string            `json:"track_path,omitempty"`
	StylePrompt string            `json:"style_prompt,omitempty"`
	Score       *wavToScoreOutput `json:"score,omitempty"`
	ScoreError  string            `json:"score_error,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleWavToMusicScore(ctx context.Context, _ *sdkmcp.CallToolRequest, input wavToScoreInput) (*sdkmcp.CallToolResult, wavToScoreOutput, error) {
	opts := pipeline.DefaultScoreOptions()
	if input.RenderSVG != nil {
		opts.RenderSVG = *input.RenderSVG
	}

	result, err := s.orch.WavToMusicScore(ctx, input.WavFilePath, opts)
	if err != nil {
		logger.Error("wav_to_music_score failed", err, logger.Fields{"input": input.WavFilePath})
		return nil, wavToScoreOutput{}, err
	}

	return nil, scoreOutputFrom(result), nil
}

func (s *Server) handleGenerateMusicFromHumming(ctx context.Context, _ *sdkmcp.CallToolRequest, input hummingInput) (*sdkmcp.CallToolResult, hummingOutput, error) {
	opts := pipeline.DefaultHummingOptions()
	opts.StylePrompt = input.StylePrompt
	if input.GenerateScore != nil {
		opts.GenerateScore = *input.GenerateScore
	}

	result, err := s.orch.GenerateMusicFromHumming(ctx, input.HummingFilePath, opts)
	if err != nil {
		logger.Error("generate_music_from_humming failed", err, logger.Fields{"input": input.HummingFilePath})
		return nil, hummingOutput{}, err
	}

	out := hummingOutput{
		Success:     result.Success,
		TrackPath:   result.TrackPath,
		StylePrompt: result.StylePrompt,
		ScoreError:  result.ScoreError,
	}
	if result.Score != nil {
		nested := scoreOutputFrom(result.Score)
		out.Score = &nested
	}
	return nil, out, nil
}

func scoreOutputFrom(result *pipeline.ScoreResult) wavToScoreOutput {
	out := wavToScoreOutput{
		Success:     result.Success,
		ScorePath:   result.ScorePath,
		ImagePath:   result.ImagePath,
		NoteCount:   result.NoteCount,
		Tempo:       result.Tempo,
		RenderError: result.RenderError,
	}
	if result.Key != nil {
		out.Key = fmt.Sprintf("%d %s", result.Key.Fifths, result.Key.Mode)
	}
	if len(result.SVG) > 0 {
		out.SVGBase64 = base64.StdEncoding.EncodeToString(result.SVG)
	}
	return out
}

// --- Resources ---

func (s *Server) registerResources() {
	s.MCPServer.AddResource(&sdkmcp.Resource{
		URI:         outputResourceURI,
		Name:        "output-directory",
		Description: "Listing of all generated artifacts (scores, images, tracks).",
		MIMEType:    "application/json",
	}, s.handleOutputResource)
}

func (s *Server) handleOutputResource(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	entries, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"dir":     s.store.Dir(),
		"count":   len(entries),
		"entries": entries,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{{
			URI:      outputResourceURI,
			MIMEType: "application/json",
			Text:     string(payload),
		}},
	}, nil
}

// --- Prompts ---

const musicProcessingTemplate = `You are an AI music processing assistant for MusicToolkit. Help with music analysis and generation tasks.

Task Type: %s
Input: %s
Desired Output: %s

Available capabilities:
1. WAV to MusicXML conversion using pitch detection
2. Music score rendering as SVG images
3. AI music generation from humming audio
4. Style-based music transformation

Please suggest:
1. Best approach for the given task
2. Recommended parameters and settings
3. Expected output quality and limitations
4. Alternative processing methods if applicable
5. Post-processing suggestions

Focus on practical, actionable advice for music processing workflows.`

func (s *Server) registerPrompts() {
	s.MCPServer.AddPrompt(&sdkmcp.Prompt{
		Name:        "music_processing",
		Description: "AI assistant for music processing and generation tasks",
		Arguments: []*sdkmcp.PromptArgument{
			{Name: "task_type", Description: "Type of music processing task", Required: true},
			{Name: "input_description", Description: "Description of the input audio/music", Required: true},
			{Name: "desired_output", Description: "Description of desired output", Required: true},
		},
	}, s.handleMusicProcessingPrompt)
}

func (s *Server) handleMusicProcessingPrompt(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	args := map[string]string{}
	if req.Params != nil {
		args = req.Params.Arguments
	}

	text := fmt.Sprintf(musicProcessingTemplate,
		args["task_type"], args["input_description"], args["desired_output"])

	return &sdkmcp.GetPromptResult{
		Description: "Music processing workflow guidance",
		Messages: []*sdkmcp.PromptMessage{{
			Role:    "user",
			Content: &sdkmcp.TextContent{Text: text},
		}},
	}, nil
}
