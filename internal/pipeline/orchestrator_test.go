package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/generate"
	"github.com/ykzou1214/musictoolkit/internal/music"
	"github.com/ykzou1214/musictoolkit/internal/pitch"
	"github.com/ykzou1214/musictoolkit/internal/render"
	"github.com/ykzou1214/musictoolkit/internal/score"
)

type fakeDetector struct {
	seq music.NoteSequence
	err error
}

func (f *fakeDetector) Detect(_ context.Context, _ string) (music.NoteSequence, error) {
	return f.seq, f.err
}

type fakeRenderer struct {
	svg   []byte
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, doc *score.Document) (*render.RenderedImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &render.RenderedImage{SVG: f.svg, Source: doc.Title}, nil
}

type fakeGenerator struct {
	wav   []byte
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _, prompt string) (*generate.GeneratedTrack, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &generate.GeneratedTrack{WAV: f.wav, StylePrompt: prompt}, nil
}

type recordedRun struct {
	tool      string
	success   bool
	noteCount int
}

type fakeMetrics struct {
	runs        []recordedRun
	remoteCalls []string
}

func (f *fakeMetrics) RecordPipelineRun(_ context.Context, tool string, _ time.Duration, success bool, noteCount int) {
	f.runs = append(f.runs, recordedRun{tool: tool, success: success, noteCount: noteCount})
}

func (f *fakeMetrics) RecordRemoteCall(_ context.Context, service string, _ time.Duration, _ bool) {
	f.remoteCalls = append(f.remoteCalls, service)
}

func simpleMelody() music.NoteSequence {
	return music.NoteSequence{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 80},
		{Pitch: 64, Start: 0.5, Duration: 0.5, Velocity: 80},
		{Pitch: 67, Start: 1.0, Duration: 0.5, Velocity: 80},
	}
}

func newTestOrchestrator(t *testing.T, detector PitchDetector, renderer ScoreRenderer, generator MusicGenerator) (*Orchestrator, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(detector, score.NewBuilder(), renderer, generator, store), store
}

func TestWavToMusicScoreHappyPath(t *testing.T) {
	renderer := &fakeRenderer{svg: []byte("<svg/>")}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, renderer, nil)

	result, err := orch.WavToMusicScore(context.Background(), "in.wav", DefaultScoreOptions())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.NoteCount)
	assert.Empty(t, result.RenderError)
	assert.Equal(t, 1, renderer.calls)

	scoreData, err := os.ReadFile(result.ScorePath)
	require.NoError(t, err)
	assert.Contains(t, string(scoreData), "<score-partwise")

	imgData, err := os.ReadFile(result.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(imgData))
	assert.Equal(t, []byte("<svg/>"), result.SVG)
}

func TestWavToMusicScoreSkipsRenderWhenDisabled(t *testing.T) {
	renderer := &fakeRenderer{svg: []byte("<svg/>")}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, renderer, nil)

	result, err := orch.WavToMusicScore(context.Background(), "in.wav", ScoreOptions{RenderSVG: false})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ScorePath)
	assert.Empty(t, result.ImagePath)
	assert.Equal(t, 0, renderer.calls)
}

func TestWavToMusicScoreRenderFailureDegrades(t *testing.T) {
	renderer := &fakeRenderer{err: fmt.Errorf("%w: boom", render.ErrTimeout)}
	orch, store := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, renderer, nil)

	result, err := orch.WavToMusicScore(context.Background(), "in.wav", DefaultScoreOptions())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ScorePath)
	assert.Empty(t, result.ImagePath)
	assert.Contains(t, result.RenderError, string(KindRenderTimeout))

	// The score artifact stays on disk; no rollback.
	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".musicxml", filepath.Ext(entries[0].Name))
}

func TestWavToMusicScoreInvalidInputIsFatal(t *testing.T) {
	detector := &fakeDetector{err: fmt.Errorf("%w: no file", pitch.ErrInvalidInput)}
	orch, store := newTestOrchestrator(t, detector, &fakeRenderer{}, nil)

	result, err := orch.WavToMusicScore(context.Background(), "missing.wav", DefaultScoreOptions())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDetect, stageErr.Stage)
	assert.Equal(t, KindInput, stageErr.Kind)
	assert.False(t, result.Success)

	entries, listErr := store.List()
	require.NoError(t, listErr)
	assert.Empty(t, entries)
}

func TestWavToMusicScoreModelUnavailable(t *testing.T) {
	detector := &fakeDetector{err: fmt.Errorf("%w: basic-pitch", pitch.ErrModelUnavailable)}
	orch, _ := newTestOrchestrator(t, detector, &fakeRenderer{}, nil)

	_, err := orch.WavToMusicScore(context.Background(), "in.wav", DefaultScoreOptions())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindModelUnavailable, stageErr.Kind)
	assert.ErrorIs(t, err, pitch.ErrModelUnavailable)
}

func TestWavToMusicScoreEmptyDetectionStillSucceeds(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeDetector{}, &fakeRenderer{svg: []byte("<svg/>")}, nil)

	result, err := orch.WavToMusicScore(context.Background(), "silence.wav", DefaultScoreOptions())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.NoteCount)

	data, err := os.ReadFile(result.ScorePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<rest")
}

func TestGenerateMusicFromHummingHappyPath(t *testing.T) {
	generator := &fakeGenerator{wav: []byte("RIFFtrack")}
	renderer := &fakeRenderer{svg: []byte("<svg/>")}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, renderer, generator)

	opts := DefaultHummingOptions()
	opts.StylePrompt = "jazzy"

	result, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", opts)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "jazzy", result.StylePrompt)
	assert.Empty(t, result.ScoreError)

	trackData, err := os.ReadFile(result.TrackPath)
	require.NoError(t, err)
	assert.Equal(t, "RIFFtrack", string(trackData))

	require.NotNil(t, result.Score)
	assert.True(t, result.Score.Success)
	assert.NotEmpty(t, result.Score.ScorePath)
	assert.NotEmpty(t, result.Score.ImagePath)
}

func TestGenerateMusicFromHummingSkipsScoreWhenDisabled(t *testing.T) {
	generator := &fakeGenerator{wav: []byte("RIFFtrack")}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, &fakeRenderer{}, generator)

	opts := DefaultHummingOptions()
	opts.GenerateScore = false

	result, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", opts)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Nil(t, result.Score)
	assert.Empty(t, result.ScoreError)
}

func TestGenerateMusicFromHummingNestedScoreFailureDegrades(t *testing.T) {
	generator := &fakeGenerator{wav: []byte("RIFFtrack")}
	detector := &fakeDetector{err: fmt.Errorf("%w: basic-pitch", pitch.ErrModelUnavailable)}
	orch, _ := newTestOrchestrator(t, detector, &fakeRenderer{}, generator)

	result, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", DefaultHummingOptions())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.TrackPath)
	assert.Nil(t, result.Score)
	assert.NotEmpty(t, result.ScoreError)
}

func TestGenerateMusicFromHummingTimeoutIsFatal(t *testing.T) {
	generator := &fakeGenerator{err: fmt.Errorf("%w: too slow", generate.ErrTimeout)}
	orch, store := newTestOrchestrator(t, &fakeDetector{}, &fakeRenderer{}, generator)

	result, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", DefaultHummingOptions())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageGenerate, stageErr.Stage)
	assert.Equal(t, KindGenerationTimeout, stageErr.Kind)
	assert.False(t, result.Success)

	entries, listErr := store.List()
	require.NoError(t, listErr)
	assert.Empty(t, entries)
}

func TestGenerateMusicFromHummingWithoutGenerator(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeDetector{}, &fakeRenderer{}, nil)

	_, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", DefaultHummingOptions())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindGenerationService, stageErr.Kind)
}

func TestWavToMusicScoreRecordsMetrics(t *testing.T) {
	rec := &fakeMetrics{}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, &fakeRenderer{svg: []byte("<svg/>")}, nil)
	orch.WithMetrics(rec)

	_, err := orch.WavToMusicScore(context.Background(), "in.wav", DefaultScoreOptions())
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "wav_to_music_score", rec.runs[0].tool)
	assert.True(t, rec.runs[0].success)
	assert.Equal(t, 3, rec.runs[0].noteCount)
	assert.Equal(t, []string{"verovio"}, rec.remoteCalls)
}

func TestGenerateMusicFromHummingRecordsMetrics(t *testing.T) {
	rec := &fakeMetrics{}
	generator := &fakeGenerator{wav: []byte("RIFFtrack")}
	orch, _ := newTestOrchestrator(t, &fakeDetector{seq: simpleMelody()}, &fakeRenderer{svg: []byte("<svg/>")}, generator)
	orch.WithMetrics(rec)

	_, err := orch.GenerateMusicFromHumming(context.Background(), "hum.wav", DefaultHummingOptions())
	require.NoError(t, err)

	// The nested score flow records its own run; both remote
	// capabilities were exercised.
	require.Len(t, rec.runs, 2)
	assert.Equal(t, "wav_to_music_score", rec.runs[0].tool)
	assert.Equal(t, "generate_music_from_humming", rec.runs[1].tool)
	assert.Equal(t, []string{"musicgen", "verovio"}, rec.remoteCalls)
}

func TestStageErrorUnwraps(t *testing.T) {
	inner := errors.New("root cause")
	stageErr := &StageError{Stage: StageRender, Kind: KindRenderService, Err: inner}

	assert.ErrorIs(t, stageErr, inner)
	assert.Contains(t, stageErr.Error(), StageRender)
	assert.Contains(t, stageErr.Error(), string(KindRenderService))
}
