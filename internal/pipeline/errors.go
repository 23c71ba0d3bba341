package pipeline

import (
	"errors"
	"fmt"

	"github.com/ykzou1214/musictoolkit/internal/generate"
	"github.com/ykzou1214/musictoolkit/internal/pitch"
	"github.com/ykzou1214/musictoolkit/internal/render"
)

// Kind classifies a pipeline failure for callers and wire surfaces.
type Kind string

const (
	KindInput             Kind = "input"
	KindModelUnavailable  Kind = "model_unavailable"
	KindRenderService     Kind = "render_service"
	KindRenderTimeout     Kind = "render_timeout"
	KindGenerationService Kind = "generation_service"
	KindGenerationTimeout Kind = "generation_timeout"
	KindStorage           Kind = "storage"
	KindInternal          Kind = "internal"
)

// Pipeline stage names, reported in errors and logs.
const (
	StageDetect       = "detect"
	StageBuild        = "build"
	StagePersistScore = "persist_score"
	StageRender       = "render"
	StagePersistImage = "persist_image"
	StageGenerate     = "generate"
	StagePersistTrack = "persist_track"
)

// StageError ties a failure to the pipeline stage it occurred in and a
// classification the caller can act on.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// classifyDetect maps pitch detection failures onto the taxonomy.
func classifyDetect(err error) *StageError {
	kind := KindInternal
	switch {
	case errors.Is(err, pitch.ErrInvalidInput):
		kind = KindInput
	case errors.Is(err, pitch.ErrModelUnavailable):
		kind = KindModelUnavailable
	}
	return &StageError{Stage: StageDetect, Kind: kind, Err: err}
}

// classifyRender maps rendering failures onto the taxonomy. Timeouts
// and unreachable hosts share the transient kind; rejections get the
// service kind.
func classifyRender(err error) *StageError {
	kind := KindRenderService
	if errors.Is(err, render.ErrTimeout) || errors.Is(err, render.ErrUnreachable) {
		kind = KindRenderTimeout
	}
	return &StageError{Stage: StageRender, Kind: kind, Err: err}
}

// classifyGenerate maps generation failures onto the taxonomy.
func classifyGenerate(err error) *StageError {
	kind := KindGenerationService
	switch {
	case errors.Is(err, generate.ErrInvalidInput):
		kind = KindInput
	case errors.Is(err, generate.ErrTimeout):
		kind = KindGenerationTimeout
	}
	return &StageError{Stage: StageGenerate, Kind: kind, Err: err}
}

func storageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindStorage, Err: err}
}
