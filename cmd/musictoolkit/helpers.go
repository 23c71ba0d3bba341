package main

import (
	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/config"
	"github.com/ykzou1214/musictoolkit/internal/generate"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
	"github.com/ykzou1214/musictoolkit/internal/pitch"
	"github.com/ykzou1214/musictoolkit/internal/render"
	"github.com/ykzou1214/musictoolkit/internal/score"
)

// buildOrchestrator wires the pipeline components from configuration.
// The model handle is returned separately for the health surface.
func buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, *pitch.BasicPitchModel, error) {
	store, err := artifact.NewStore(cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	model := pitch.NewBasicPitchModel(cfg.TranscribeCommand)
	detector := pitch.NewDetector(model, pitch.DefaultOptions())
	builder := score.NewBuilder()
	renderer := render.NewRenderer(cfg.VerovioURL, cfg.RenderTimeout)
	generator := generate.NewGenerator(cfg.MusicGenURL, cfg.GenerateTimeout)

	orch := pipeline.New(detector, builder, renderer, generator, store)
	return orch, model, nil
}
