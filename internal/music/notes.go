// Package music holds the note-event model shared by the pitch detector,
// the score builder and the pipeline.
package music

import "sort"

// NoteEvent is a single detected note. Times are in seconds relative to
// the start of the source audio. Pitch is a MIDI note number (0-127).
type NoteEvent struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// End returns the offset time of the note.
func (n NoteEvent) End() float64 {
	return n.Start + n.Duration
}

// NoteSequence is an ordered set of note events from one source audio
// file. Events are ordered by onset; overlapping events are legal
// (polyphony).
type NoteSequence []NoteEvent

// SortByOnset orders the sequence by start time, pitch as tie-break.
func (s NoteSequence) SortByOnset() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Start != s[j].Start {
			return s[i].Start < s[j].Start
		}
		return s[i].Pitch < s[j].Pitch
	})
}

// Span returns the end time of the last-sounding note.
func (s NoteSequence) Span() float64 {
	var max float64
	for _, n := range s {
		if end := n.End(); end > max {
			max = end
		}
	}
	return max
}

// PitchClass returns the pitch class (0-11, C=0) of a MIDI note number.
func PitchClass(pitch int) int {
	return ((pitch % 12) + 12) % 12
}
