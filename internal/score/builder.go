// Package score turns note sequences into symbolic music documents
// with quantization and simple tempo/key heuristics, and serializes
// them to MusicXML.
package score

import (
	"math"
	"sort"

	"github.com/ykzou1214/musictoolkit/internal/music"
)

const (
	// DivisionsPerQuarter fixes the quantization grid: 4 divisions per
	// quarter note = a 16th-note grid.
	DivisionsPerQuarter = 4

	defaultBeats    = 4
	defaultBeatType = 4

	defaultTempoBPM = 120.0
	minTempoBPM     = 40.0
	maxTempoBPM     = 240.0
)

// Note is one notated event. Duration is measured in divisions
// (DivisionsPerQuarter per quarter note). Chord marks a note sounding
// together with the previous one.
type Note struct {
	Rest     bool
	Chord    bool
	Pitch    int
	Duration int
}

// Measure is a numbered bar of notes and rests.
type Measure struct {
	Number int
	Notes  []Note
}

// Document is the symbolic music representation produced by the
// builder: a single instrumental part laid out in measures, plus the
// inferred tempo and signatures. Read-only once serialized.
type Document struct {
	Title     string
	Tempo     float64
	Key       KeySignature
	Beats     int
	BeatType  int
	Divisions int
	Measures  []Measure

	// Events keeps the quantized note sequence (seconds) the measures
	// were laid out from, for inspection and testing.
	Events music.NoteSequence
}

// NoteCount returns the number of pitched notes in the document.
func (d *Document) NoteCount() int {
	count := 0
	for _, m := range d.Measures {
		for _, n := range m.Notes {
			if !n.Rest {
				count++
			}
		}
	}
	return count
}

// Builder converts note sequences into Documents.
type Builder struct {
	divisions int
}

// NewBuilder returns a builder on the default 16th-note grid.
func NewBuilder() *Builder {
	return &Builder{divisions: DivisionsPerQuarter}
}

// Build lays the sequence out as a single 4/4 part. An empty sequence
// is legal and yields a document with one whole-measure rest.
func (b *Builder) Build(seq music.NoteSequence) (*Document, error) {
	doc := &Document{
		Title:     "Generated from Audio",
		Tempo:     inferTempo(seq),
		Key:       EstimateKey(seq),
		Beats:     defaultBeats,
		BeatType:  defaultBeatType,
		Divisions: b.divisions,
	}

	measureDivs := doc.Beats * b.divisions

	if len(seq) == 0 {
		doc.Measures = []Measure{{
			Number: 1,
			Notes:  []Note{{Rest: true, Duration: measureDivs}},
		}}
		doc.Events = music.NoteSequence{}
		return doc, nil
	}

	placed, events := b.quantize(seq, doc.Tempo)
	doc.Events = events
	doc.Measures = layoutMeasures(placed, measureDivs)
	return doc, nil
}

// placedNote positions a quantized note on the division timeline.
type placedNote struct {
	onset    int
	duration int
	pitch    int
}

// quantize snaps onsets and durations to the grid and returns both the
// timeline positions and the equivalent sequence in seconds.
func (b *Builder) quantize(seq music.NoteSequence, tempo float64) ([]placedNote, music.NoteSequence) {
	divSeconds := 60.0 / tempo / float64(b.divisions)

	placed := make([]placedNote, 0, len(seq))
	events := make(music.NoteSequence, 0, len(seq))
	for _, n := range seq {
		onset := int(math.Round(n.Start / divSeconds))
		dur := int(math.Round(n.Duration / divSeconds))
		if dur < 1 {
			dur = 1
		}
		placed = append(placed, placedNote{onset: onset, duration: dur, pitch: n.Pitch})
		events = append(events, music.NoteEvent{
			Pitch:    n.Pitch,
			Start:    float64(onset) * divSeconds,
			Duration: float64(dur) * divSeconds,
			Velocity: n.Velocity,
		})
	}

	sort.SliceStable(placed, func(i, j int) bool {
		if placed[i].onset != placed[j].onset {
			return placed[i].onset < placed[j].onset
		}
		return placed[i].pitch < placed[j].pitch
	})
	return placed, events
}

// layoutMeasures walks the division timeline into 4/4 bars. Notes with
// the same onset become a chord; an overlapping later onset truncates
// the sounding note (single-voice simplification); gaps become rests;
// the trailing partial measure is padded with rests.
func layoutMeasures(placed []placedNote, measureDivs int) []Measure {
	var measures []Measure
	current := Measure{Number: 1}
	cursor := 0 // absolute position in divisions
	measureEnd := measureDivs

	flush := func() {
		measures = append(measures, current)
		current = Measure{Number: len(measures) + 1}
		measureEnd += measureDivs
	}

	emit := func(n Note, at int) int {
		// Clamp to the current barline; crossing notes are cut rather
		// than tied.
		if at+n.Duration > measureEnd {
			n.Duration = measureEnd - at
		}
		if n.Duration <= 0 {
			return at
		}
		current.Notes = append(current.Notes, n)
		at += n.Duration
		if at == measureEnd {
			flush()
		}
		return at
	}

	fillRests := func(until int) {
		for cursor < until {
			gap := until - cursor
			if remaining := measureEnd - cursor; gap > remaining {
				gap = remaining
			}
			cursor = emit(Note{Rest: true, Duration: gap}, cursor)
		}
	}

	for i := 0; i < len(placed); {
		n := placed[i]

		if n.onset > cursor {
			fillRests(n.onset)
		}

		// Group all notes sharing this onset into a chord.
		j := i
		maxDur := 0
		for ; j < len(placed) && placed[j].onset == n.onset; j++ {
			if placed[j].duration > maxDur {
				maxDur = placed[j].duration
			}
		}

		// A later overlapping onset truncates the chord.
		if j < len(placed) && placed[j].onset < n.onset+maxDur {
			maxDur = placed[j].onset - n.onset
		}

		at := n.onset
		if at < cursor {
			at = cursor
		}
		before := at
		for k := i; k < j; k++ {
			note := Note{Pitch: placed[k].pitch, Duration: maxDur, Chord: k > i}
			if k == i {
				at = emit(note, before)
			} else {
				// Chord members share the primary note's position.
				if len(current.Notes) > 0 || len(measures) > 0 {
					note.Duration = at - before
					if note.Duration > 0 {
						appendChord(&measures, &current, note)
					}
				}
			}
		}
		cursor = at
		i = j
	}

	// Pad the trailing partial measure.
	if len(current.Notes) > 0 {
		fillRests(measureEnd)
	}
	if len(current.Notes) > 0 {
		measures = append(measures, current)
	}
	if len(measures) == 0 {
		measures = []Measure{{Number: 1, Notes: []Note{{Rest: true, Duration: measureDivs}}}}
	}
	return measures
}

// appendChord attaches a chord member next to the primary note, which
// may already have been flushed into a completed measure.
func appendChord(measures *[]Measure, current *Measure, n Note) {
	if len(current.Notes) > 0 {
		current.Notes = append(current.Notes, n)
		return
	}
	if len(*measures) > 0 {
		last := &(*measures)[len(*measures)-1]
		last.Notes = append(last.Notes, n)
	}
}

// inferTempo derives a global tempo from the median inter-onset
// interval, folded into a plausible BPM range. Fewer than two distinct
// onsets falls back to 120 BPM.
func inferTempo(seq music.NoteSequence) float64 {
	onsets := make([]float64, 0, len(seq))
	for _, n := range seq {
		onsets = append(onsets, n.Start)
	}
	sort.Float64s(onsets)

	var intervals []float64
	for i := 1; i < len(onsets); i++ {
		if d := onsets[i] - onsets[i-1]; d > 1e-6 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return defaultTempoBPM
	}

	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		median = (intervals[len(intervals)/2-1] + intervals[len(intervals)/2]) / 2
	}

	bpm := 60.0 / median
	for bpm < minTempoBPM {
		bpm *= 2
	}
	for bpm > maxTempoBPM {
		bpm /= 2
	}
	return bpm
}
