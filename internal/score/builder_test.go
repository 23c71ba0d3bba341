package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ykzou1214/musictoolkit/internal/music"
)

func evenMelody(pitches []int, spacing, duration float64) music.NoteSequence {
	seq := make(music.NoteSequence, 0, len(pitches))
	for i, p := range pitches {
		seq = append(seq, music.NoteEvent{
			Pitch:    p,
			Start:    float64(i) * spacing,
			Duration: duration,
			Velocity: 80,
		})
	}
	return seq
}

func TestBuildEmptySequenceYieldsWholeMeasureRest(t *testing.T) {
	doc, err := NewBuilder().Build(nil)
	require.NoError(t, err)

	require.Len(t, doc.Measures, 1)
	require.Len(t, doc.Measures[0].Notes, 1)
	assert.True(t, doc.Measures[0].Notes[0].Rest)
	assert.Equal(t, doc.Beats*doc.Divisions, doc.Measures[0].Notes[0].Duration)
	assert.Equal(t, 0, doc.NoteCount())
	assert.Equal(t, defaultTempoBPM, doc.Tempo)
}

func TestBuildSingleNote(t *testing.T) {
	// A single A4 held for half a second at the default 120 BPM grid
	// quantizes to one quarter note.
	seq := music.NoteSequence{{Pitch: 69, Start: 0, Duration: 0.5, Velocity: 90}}

	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.NoteCount())
	require.Len(t, doc.Measures, 1)

	first := doc.Measures[0].Notes[0]
	assert.False(t, first.Rest)
	assert.Equal(t, 69, first.Pitch)
	assert.Equal(t, DivisionsPerQuarter, first.Duration)
}

func TestBuildQuantizationIsIdempotent(t *testing.T) {
	seq := evenMelody([]int{60, 62, 64, 65}, 0.5, 0.5)

	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, doc.Tempo, 1e-9)

	again, err := NewBuilder().Build(doc.Events)
	require.NoError(t, err)
	assert.Equal(t, doc.Events, again.Events)
	assert.Equal(t, doc.Measures, again.Measures)
}

func TestBuildMeasuresAreFullyPadded(t *testing.T) {
	// Five quarter notes cross into a second measure; both measures
	// must still sum to exactly one bar of divisions.
	seq := evenMelody([]int{60, 62, 64, 65, 67}, 0.5, 0.5)

	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)
	require.Len(t, doc.Measures, 2)

	measureDivs := doc.Beats * doc.Divisions
	for _, m := range doc.Measures {
		total := 0
		for _, n := range m.Notes {
			if !n.Chord {
				total += n.Duration
			}
		}
		assert.Equal(t, measureDivs, total, "measure %d", m.Number)
	}
}

func TestBuildGapsBecomeRests(t *testing.T) {
	seq := music.NoteSequence{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 80},
		{Pitch: 64, Start: 1.5, Duration: 0.5, Velocity: 80},
	}

	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)

	var sawRest bool
	for _, n := range doc.Measures[0].Notes {
		if n.Rest {
			sawRest = true
		}
	}
	assert.True(t, sawRest, "gap between notes should produce a rest")
	assert.Equal(t, 2, doc.NoteCount())
}

func TestBuildSimultaneousOnsetsFormChord(t *testing.T) {
	seq := music.NoteSequence{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 80},
		{Pitch: 64, Start: 0, Duration: 0.5, Velocity: 80},
		{Pitch: 67, Start: 0, Duration: 0.5, Velocity: 80},
	}

	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)

	notes := doc.Measures[0].Notes
	require.GreaterOrEqual(t, len(notes), 3)
	assert.False(t, notes[0].Chord)
	assert.True(t, notes[1].Chord)
	assert.True(t, notes[2].Chord)
	assert.Equal(t, notes[0].Duration, notes[1].Duration)
}

func TestInferTempoFoldsIntoRange(t *testing.T) {
	tests := []struct {
		name    string
		spacing float64
		want    float64
	}{
		{"direct", 0.5, 120},
		{"slow doubles up", 2.0, 60},
		{"fast halves down", 0.125, 240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := evenMelody([]int{60, 62, 64, 65}, tt.spacing, tt.spacing/2)
			assert.InDelta(t, tt.want, inferTempo(seq), 1e-9)
		})
	}
}

func TestInferTempoDefaultsWithoutIntervals(t *testing.T) {
	assert.Equal(t, defaultTempoBPM, inferTempo(nil))
	assert.Equal(t, defaultTempoBPM, inferTempo(music.NoteSequence{
		{Pitch: 60, Start: 0, Duration: 1},
	}))
}

func TestMusicXMLSerialization(t *testing.T) {
	seq := evenMelody([]int{60, 62, 64, 65}, 0.5, 0.5)
	doc, err := NewBuilder().Build(seq)
	require.NoError(t, err)

	data, err := doc.MusicXML()
	require.NoError(t, err)
	xml := string(data)

	assert.Contains(t, xml, `<score-partwise version="3.1">`)
	assert.Contains(t, xml, "<!DOCTYPE score-partwise")
	assert.Contains(t, xml, "<part-name>Generated Part</part-name>")
	assert.Contains(t, xml, "<divisions>4</divisions>")
	assert.Contains(t, xml, "<beats>4</beats>")
	assert.Contains(t, xml, `<clef>`)
	assert.Contains(t, xml, "<software>MusicToolkit</software>")

	// Attributes appear on the first measure only.
	assert.Equal(t, 1, strings.Count(xml, "<attributes>"))
}

func TestMusicXMLSpellsByKeySignature(t *testing.T) {
	sharpDoc := &Document{
		Title: "t", Tempo: 120, Key: KeySignature{Fifths: 1, Mode: ModeMajor},
		Beats: 4, BeatType: 4, Divisions: 4,
		Measures: []Measure{{Number: 1, Notes: []Note{
			{Pitch: 66, Duration: 16}, // F#4
		}}},
	}
	data, err := sharpDoc.MusicXML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "<step>F</step>")
	assert.Contains(t, string(data), "<alter>1</alter>")

	flatDoc := &Document{
		Title: "t", Tempo: 120, Key: KeySignature{Fifths: -1, Mode: ModeMajor},
		Beats: 4, BeatType: 4, Divisions: 4,
		Measures: []Measure{{Number: 1, Notes: []Note{
			{Pitch: 70, Duration: 16}, // Bb4
		}}},
	}
	data, err = flatDoc.MusicXML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "<step>B</step>")
	assert.Contains(t, string(data), "<alter>-1</alter>")
}
