// Package pitch converts a WAV waveform into discrete note events by
// running a local transcription model and cleaning up its output.
package pitch

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ykzou1214/musictoolkit/internal/music"
)

const defaultTempoBPM = 120.0

// Options tune the note-event cleanup after inference.
type Options struct {
	// MinNoteDuration is the hysteresis threshold in seconds. Notes
	// shorter than this are merged into an adjacent note of the same
	// pitch or dropped.
	MinNoteDuration float64

	// MergeGap is the maximum silence in seconds between two notes of
	// the same pitch for a short fragment to be merged backwards.
	MergeGap float64
}

// DefaultOptions returns the cleanup defaults.
func DefaultOptions() Options {
	return Options{
		MinNoteDuration: 0.06,
		MergeGap:        0.05,
	}
}

// Detector wraps a local inference model and turns WAV files into
// note sequences. It performs no I/O beyond reading the input and a
// private temp directory for the model's intermediate MIDI.
type Detector struct {
	model Model
	opts  Options
}

// NewDetector creates a detector around the given model.
func NewDetector(model Model, opts Options) *Detector {
	if opts.MinNoteDuration <= 0 {
		opts.MinNoteDuration = DefaultOptions().MinNoteDuration
	}
	if opts.MergeGap <= 0 {
		opts.MergeGap = DefaultOptions().MergeGap
	}
	return &Detector{model: model, opts: opts}
}

// ModelName reports the wrapped model for health/status surfaces.
func (d *Detector) ModelName() string {
	return d.model.Name()
}

// Detect converts the WAV file at wavPath into an onset-ordered note
// sequence.
func (d *Detector) Detect(ctx context.Context, wavPath string) (music.NoteSequence, error) {
	if err := validateWAV(wavPath); err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "musictoolkit-pitch-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	midiPath, err := d.model.Transcribe(ctx, wavPath, workDir)
	if err != nil {
		return nil, err
	}

	seq, err := notesFromSMF(midiPath)
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	seq = suppressFragments(seq, d.opts)
	seq.SortByOnset()
	return seq, nil
}

// validateWAV checks that the input exists and is decodable PCM audio.
func validateWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: %s is not decodable PCM audio", ErrInvalidInput, path)
	}
	return nil
}

// notesFromSMF reads the model's Standard MIDI File output and pairs
// note-on/note-off events into NoteEvents with absolute times.
func notesFromSMF(path string) (music.NoteSequence, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported SMF time format %v", s.TimeFormat)
	}

	type pending struct {
		start    float64
		velocity int
	}

	var seq music.NoteSequence
	for _, track := range s.Tracks {
		bpm := defaultTempoBPM
		elapsed := 0.0
		active := make(map[uint8]pending)

		for _, ev := range track {
			elapsed += ticks.Duration(bpm, ev.Delta).Seconds()

			var tempo float64
			var ch, key, vel uint8
			switch {
			case ev.Message.GetMetaTempo(&tempo):
				bpm = tempo
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				if p, open := active[key]; open {
					seq = append(seq, music.NoteEvent{
						Pitch: int(key), Start: p.start,
						Duration: elapsed - p.start, Velocity: p.velocity,
					})
				}
				active[key] = pending{start: elapsed, velocity: int(vel)}
			case ev.Message.GetNoteEnd(&ch, &key):
				if p, open := active[key]; open {
					seq = append(seq, music.NoteEvent{
						Pitch: int(key), Start: p.start,
						Duration: elapsed - p.start, Velocity: p.velocity,
					})
					delete(active, key)
				}
			}
		}
	}
	return seq, nil
}

// suppressFragments applies the minimum-duration hysteresis: fragments
// below the threshold are merged into the preceding note of the same
// pitch when the gap is small, otherwise dropped.
func suppressFragments(seq music.NoteSequence, opts Options) music.NoteSequence {
	seq.SortByOnset()

	kept := make(music.NoteSequence, 0, len(seq))
	lastByPitch := make(map[int]int)

	for _, n := range seq {
		if n.Duration >= opts.MinNoteDuration {
			kept = append(kept, n)
			lastByPitch[n.Pitch] = len(kept) - 1
			continue
		}

		if idx, ok := lastByPitch[n.Pitch]; ok {
			prev := &kept[idx]
			if n.Start-prev.End() <= opts.MergeGap && n.End() > prev.End() {
				prev.Duration = n.End() - prev.Start
				continue
			}
		}
		// Isolated fragment: drop.
	}
	return kept
}
