// Package pipeline orchestrates the two tool flows: WAV to music
// score, and humming to generated music. Stages either abort the run
// (fatal) or degrade it (optional); artifacts written before a failure
// are never rolled back.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/generate"
	"github.com/ykzou1214/musictoolkit/internal/logger"
	"github.com/ykzou1214/musictoolkit/internal/metrics"
	"github.com/ykzou1214/musictoolkit/internal/music"
	"github.com/ykzou1214/musictoolkit/internal/render"
	"github.com/ykzou1214/musictoolkit/internal/score"
)

// PitchDetector turns a WAV file into note events.
type PitchDetector interface {
	Detect(ctx context.Context, wavPath string) (music.NoteSequence, error)
}

// ScoreBuilder lays note events out as a symbolic score.
type ScoreBuilder interface {
	Build(seq music.NoteSequence) (*score.Document, error)
}

// ScoreRenderer produces an SVG image of a score document.
type ScoreRenderer interface {
	Render(ctx context.Context, doc *score.Document) (*render.RenderedImage, error)
}

// MusicGenerator produces an audio track from a humming recording and
// a style prompt.
type MusicGenerator interface {
	Generate(ctx context.Context, hummingPath, stylePrompt string) (*generate.GeneratedTrack, error)
}

// MetricsRecorder emits spans for pipeline runs and remote capability
// calls.
type MetricsRecorder interface {
	RecordPipelineRun(ctx context.Context, tool string, duration time.Duration, success bool, noteCount int)
	RecordRemoteCall(ctx context.Context, service string, duration time.Duration, success bool)
}

// Remote capability names as they appear in metric spans.
const (
	serviceVerovio  = "verovio"
	serviceMusicGen = "musicgen"
)

// ScoreOptions control the WAV-to-score flow.
type ScoreOptions struct {
	// RenderSVG requests the optional rendering stage.
	RenderSVG bool

	// Timestamp overrides the artifact naming time. Zero means now.
	Timestamp time.Time
}

// DefaultScoreOptions mirrors the tool defaults: rendering on.
func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{RenderSVG: true}
}

// HummingOptions control the humming-to-music flow.
type HummingOptions struct {
	StylePrompt string

	// GenerateScore runs the full score flow on the generated track.
	GenerateScore bool

	// RenderSVG is passed through to the nested score flow.
	RenderSVG bool

	Timestamp time.Time
}

// DefaultHummingOptions mirrors the tool defaults: nested score flow
// on, rendering on.
func DefaultHummingOptions() HummingOptions {
	return HummingOptions{GenerateScore: true, RenderSVG: true}
}

// ScoreResult reports one WAV-to-score run. ScorePath is set whenever
// the MusicXML artifact was persisted, regardless of later failures.
type ScoreResult struct {
	Success   bool    `json:"success"`
	ScorePath string  `json:"score_path,omitempty"`
	ImagePath string  `json:"image_path,omitempty"`
	NoteCount int     `json:"note_count"`
	Tempo     float64 `json:"tempo,omitempty"`

	Key *score.KeySignature `json:"key,omitempty"`

	// SVG carries the rendered image inline for callers that want it
	// without a second read.
	SVG []byte `json:"-"`

	// RenderError records an optional-stage failure. Success stays true.
	RenderError string `json:"render_error,omitempty"`
}

// HummingResult reports one humming-to-music run.
type HummingResult struct {
	Success     bool   `json:"success"`
	TrackPath   string `json:"track_path,omitempty"`
	StylePrompt string `json:"style_prompt,omitempty"`

	// Score holds the nested score run when one was requested and the
	// track was persisted.
	Score *ScoreResult `json:"score,omitempty"`

	// ScoreError records a fatal failure of the nested score flow.
	// Success stays true; the generated track is already on disk.
	ScoreError string `json:"score_error,omitempty"`
}

// Orchestrator wires the components together and owns the stage
// ordering and failure policy.
type Orchestrator struct {
	detector  PitchDetector
	builder   ScoreBuilder
	renderer  ScoreRenderer
	generator MusicGenerator
	store     *artifact.Store
	metrics   MetricsRecorder
}

// New assembles an orchestrator. All components are required except
// renderer and generator, which may be nil when the corresponding tool
// is not served.
func New(detector PitchDetector, builder ScoreBuilder, renderer ScoreRenderer, generator MusicGenerator, store *artifact.Store) *Orchestrator {
	return &Orchestrator{
		detector:  detector,
		builder:   builder,
		renderer:  renderer,
		generator: generator,
		store:     store,
		metrics:   metrics.NewSentryMetrics(),
	}
}

// WithMetrics replaces the metrics recorder and returns the
// orchestrator for chaining.
func (o *Orchestrator) WithMetrics(m MetricsRecorder) *Orchestrator {
	o.metrics = m
	return o
}

// Store exposes the artifact store for listing surfaces.
func (o *Orchestrator) Store() *artifact.Store {
	return o.store
}

// WavToMusicScore runs detect, build, persist, and optionally render.
// A fatal stage failure returns a *StageError and a result with
// Success=false; a rendering failure only populates RenderError.
func (o *Orchestrator) WavToMusicScore(ctx context.Context, wavPath string, opts ScoreOptions) (*ScoreResult, error) {
	started := time.Now()
	result := &ScoreResult{}

	seq, err := o.detector.Detect(ctx, wavPath)
	if err != nil {
		stageErr := classifyDetect(err)
		o.finish(ctx, "wav_to_music_score", started, false, 0, logger.Fields{"stage": stageErr.Stage, "input": wavPath})
		return result, stageErr
	}

	doc, err := o.builder.Build(seq)
	if err != nil {
		stageErr := &StageError{Stage: StageBuild, Kind: KindInternal, Err: err}
		o.finish(ctx, "wav_to_music_score", started, false, 0, logger.Fields{"stage": StageBuild, "input": wavPath})
		return result, stageErr
	}
	result.NoteCount = doc.NoteCount()
	result.Tempo = doc.Tempo
	key := doc.Key
	result.Key = &key

	data, err := doc.MusicXML()
	if err != nil {
		stageErr := &StageError{Stage: StageBuild, Kind: KindInternal, Err: err}
		o.finish(ctx, "wav_to_music_score", started, false, result.NoteCount, logger.Fields{"stage": StageBuild, "input": wavPath})
		return result, stageErr
	}

	result.ScorePath, err = o.save(opts.Timestamp, artifact.KindMusicXML, data)
	if err != nil {
		stageErr := storageError(StagePersistScore, err)
		o.finish(ctx, "wav_to_music_score", started, false, result.NoteCount, logger.Fields{"stage": StagePersistScore, "input": wavPath})
		return result, stageErr
	}

	result.Success = true

	if opts.RenderSVG {
		o.renderInto(ctx, doc, opts.Timestamp, result)
	}

	o.finish(ctx, "wav_to_music_score", started, true, result.NoteCount, logger.Fields{
		"input":        wavPath,
		"score_path":   result.ScorePath,
		"note_count":   result.NoteCount,
		"span_seconds": seq.Span(),
	})
	return result, nil
}

// renderInto runs the optional rendering stage. Failures are recorded
// on the result and logged, never returned.
func (o *Orchestrator) renderInto(ctx context.Context, doc *score.Document, ts time.Time, result *ScoreResult) {
	if o.renderer == nil {
		result.RenderError = "rendering not configured"
		return
	}

	callStarted := time.Now()
	img, err := o.renderer.Render(ctx, doc)
	o.metrics.RecordRemoteCall(ctx, serviceVerovio, time.Since(callStarted), err == nil)
	if err != nil {
		stageErr := classifyRender(err)
		result.RenderError = stageErr.Error()
		logger.Warn("score rendering failed", logger.Fields{
			"stage": stageErr.Stage,
			"kind":  string(stageErr.Kind),
			"error": err.Error(),
		})
		return
	}

	path, err := o.save(ts, artifact.KindSVG, img.SVG)
	if err != nil {
		stageErr := storageError(StagePersistImage, err)
		result.RenderError = stageErr.Error()
		logger.Warn("score image persistence failed", logger.Fields{
			"stage": StagePersistImage,
			"error": err.Error(),
		})
		return
	}
	result.ImagePath = path
	result.SVG = img.SVG
}

// GenerateMusicFromHumming runs generate and persist, then optionally
// the full score flow on the produced track. A nested score failure
// only populates ScoreError; the track is already saved.
func (o *Orchestrator) GenerateMusicFromHumming(ctx context.Context, hummingPath string, opts HummingOptions) (*HummingResult, error) {
	started := time.Now()
	result := &HummingResult{StylePrompt: opts.StylePrompt}

	if o.generator == nil {
		stageErr := &StageError{
			Stage: StageGenerate,
			Kind:  KindGenerationService,
			Err:   fmt.Errorf("generation not configured"),
		}
		o.finish(ctx, "generate_music_from_humming", started, false, 0, logger.Fields{"stage": StageGenerate, "input": hummingPath})
		return result, stageErr
	}

	callStarted := time.Now()
	track, err := o.generator.Generate(ctx, hummingPath, opts.StylePrompt)
	o.metrics.RecordRemoteCall(ctx, serviceMusicGen, time.Since(callStarted), err == nil)
	if err != nil {
		stageErr := classifyGenerate(err)
		o.finish(ctx, "generate_music_from_humming", started, false, 0, logger.Fields{"stage": stageErr.Stage, "input": hummingPath})
		return result, stageErr
	}

	result.TrackPath, err = o.save(opts.Timestamp, artifact.KindWAV, track.WAV)
	if err != nil {
		stageErr := storageError(StagePersistTrack, err)
		o.finish(ctx, "generate_music_from_humming", started, false, 0, logger.Fields{"stage": StagePersistTrack, "input": hummingPath})
		return result, stageErr
	}

	result.Success = true

	if opts.GenerateScore {
		scoreResult, scoreErr := o.WavToMusicScore(ctx, result.TrackPath, ScoreOptions{
			RenderSVG: opts.RenderSVG,
			Timestamp: opts.Timestamp,
		})
		if scoreErr != nil {
			result.ScoreError = scoreErr.Error()
			logger.Warn("nested score flow failed", logger.Fields{
				"track_path": result.TrackPath,
				"error":      scoreErr.Error(),
			})
		} else {
			result.Score = scoreResult
		}
	}

	noteCount := 0
	if result.Score != nil {
		noteCount = result.Score.NoteCount
	}
	o.finish(ctx, "generate_music_from_humming", started, true, noteCount, logger.Fields{
		"input":      hummingPath,
		"track_path": result.TrackPath,
	})
	return result, nil
}

func (o *Orchestrator) save(ts time.Time, kind string, data []byte) (string, error) {
	if ts.IsZero() {
		return o.store.Save(kind, data)
	}
	return o.store.SaveAt(ts, kind, data)
}

func (o *Orchestrator) finish(ctx context.Context, tool string, started time.Time, success bool, noteCount int, fields logger.Fields) {
	duration := time.Since(started)
	o.metrics.RecordPipelineRun(ctx, tool, duration, success, noteCount)
	logger.LogPipelineRun(tool, duration, success, fields)
}
