package pitch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Sentinel errors for the detection stage.
var (
	// ErrModelUnavailable signals that the local transcription model is
	// not installed. Callers should advise installing it; this is an
	// operational problem, not a data problem.
	ErrModelUnavailable = errors.New("transcription model not installed")

	// ErrInvalidInput signals a missing, unreadable, or non-PCM input
	// file.
	ErrInvalidInput = errors.New("invalid audio input")
)

// Model is the local audio-to-MIDI inference capability. Transcribe
// writes a Standard MIDI File for the given WAV into outDir and returns
// its path.
type Model interface {
	Name() string
	Transcribe(ctx context.Context, wavPath, outDir string) (string, error)
}

// DefaultModelCommand is the Basic Pitch CLI installed via
// `pip install basic-pitch`.
const DefaultModelCommand = "basic-pitch"

// BasicPitchModel runs the Basic Pitch command-line transcriber. The
// CLI maps the waveform to a piano-roll activation map internally and
// emits the resulting note events as a .mid file.
type BasicPitchModel struct {
	command string
	runner  *Runner
}

// NewBasicPitchModel wraps the given transcription command. An empty
// command selects DefaultModelCommand.
func NewBasicPitchModel(command string) *BasicPitchModel {
	if command == "" {
		command = DefaultModelCommand
	}
	return &BasicPitchModel{command: command, runner: NewRunner()}
}

// Name returns the wrapped command name.
func (m *BasicPitchModel) Name() string {
	return m.command
}

// Available reports whether the transcription command is on PATH.
func (m *BasicPitchModel) Available() bool {
	_, err := exec.LookPath(m.command)
	return err == nil
}

// Transcribe runs the model against wavPath, saving MIDI into outDir.
func (m *BasicPitchModel) Transcribe(ctx context.Context, wavPath, outDir string) (string, error) {
	if _, err := exec.LookPath(m.command); err != nil {
		return "", fmt.Errorf("%w: %s (pip install basic-pitch)", ErrModelUnavailable, m.command)
	}

	if _, err := m.runner.Run(ctx, m.command, outDir, wavPath, "--save-midi"); err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*.mid"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("transcription: %s produced no MIDI output", m.command)
	}
	return matches[0], nil
}
