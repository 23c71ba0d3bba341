package score

import (
	"encoding/xml"
	"fmt"
	"time"
)

const (
	musicXMLVersion = "3.1"
	musicXMLDoctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 3.1 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"
)

// Pitch spelling tables. Sharps for sharp-side keys, flats otherwise.
var (
	sharpSteps  = [12]string{"C", "C", "D", "D", "E", "F", "F", "G", "G", "A", "A", "B"}
	sharpAlters = [12]int{0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0}
	flatSteps   = [12]string{"C", "D", "D", "E", "E", "F", "G", "G", "A", "A", "B", "B"}
	flatAlters  = [12]int{0, -1, 0, -1, 0, 0, -1, 0, -1, 0, -1, 0}
)

type xmlScorePartwise struct {
	XMLName        xml.Name           `xml:"score-partwise"`
	Version        string             `xml:"version,attr"`
	Work           *xmlWork           `xml:"work,omitempty"`
	Identification *xmlIdentification `xml:"identification,omitempty"`
	PartList       xmlPartList        `xml:"part-list"`
	Parts          []xmlPart          `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlIdentification struct {
	Encoding xmlEncoding `xml:"encoding"`
}

type xmlEncoding struct {
	Software     string `xml:"software"`
	EncodingDate string `xml:"encoding-date"`
}

type xmlPartList struct {
	ScoreParts []xmlScorePart `xml:"score-part"`
}

type xmlScorePart struct {
	ID       string `xml:"id,attr"`
	PartName string `xml:"part-name"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Number     int            `xml:"number,attr"`
	Attributes *xmlAttributes `xml:"attributes,omitempty"`
	Sound      *xmlSound      `xml:"sound,omitempty"`
	Notes      []xmlNote      `xml:"note"`
}

type xmlAttributes struct {
	Divisions int     `xml:"divisions"`
	Key       xmlKey  `xml:"key"`
	Time      xmlTime `xml:"time"`
	Clef      xmlClef `xml:"clef"`
}

type xmlKey struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type xmlTime struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xmlClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type xmlSound struct {
	Tempo float64 `xml:"tempo,attr"`
}

// Child order matters to MusicXML consumers: chord, rest, pitch,
// duration, type, dot.
type xmlNote struct {
	Chord    *xmlEmpty `xml:"chord,omitempty"`
	Rest     *xmlEmpty `xml:"rest,omitempty"`
	Pitch    *xmlPitch `xml:"pitch,omitempty"`
	Duration int       `xml:"duration"`
	Type     string    `xml:"type,omitempty"`
	Dot      *xmlEmpty `xml:"dot,omitempty"`
}

type xmlEmpty struct{}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  *int   `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

// MusicXML serializes the document as a partwise MusicXML 3.1 file.
func (d *Document) MusicXML() ([]byte, error) {
	part := xmlPart{ID: "P1"}
	for i, m := range d.Measures {
		xm := xmlMeasure{Number: m.Number}
		if i == 0 {
			xm.Attributes = &xmlAttributes{
				Divisions: d.Divisions,
				Key:       xmlKey{Fifths: d.Key.Fifths, Mode: d.Key.Mode},
				Time:      xmlTime{Beats: d.Beats, BeatType: d.BeatType},
				Clef:      xmlClef{Sign: "G", Line: 2},
			}
			if d.Tempo > 0 {
				xm.Sound = &xmlSound{Tempo: d.Tempo}
			}
		}
		for _, n := range m.Notes {
			xm.Notes = append(xm.Notes, d.xmlNoteFor(n))
		}
		part.Measures = append(part.Measures, xm)
	}

	doc := xmlScorePartwise{
		Version: musicXMLVersion,
		Work:    &xmlWork{Title: d.Title},
		Identification: &xmlIdentification{
			Encoding: xmlEncoding{
				Software:     "MusicToolkit",
				EncodingDate: time.Now().Format("2006-01-02"),
			},
		},
		PartList: xmlPartList{
			ScoreParts: []xmlScorePart{{ID: "P1", PartName: "Generated Part"}},
		},
		Parts: []xmlPart{part},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal musicxml: %w", err)
	}

	out := make([]byte, 0, len(xml.Header)+len(musicXMLDoctype)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, musicXMLDoctype...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func (d *Document) xmlNoteFor(n Note) xmlNote {
	xn := xmlNote{Duration: n.Duration}
	if n.Chord {
		xn.Chord = &xmlEmpty{}
	}
	if n.Rest {
		xn.Rest = &xmlEmpty{}
	} else {
		pc := ((n.Pitch % 12) + 12) % 12
		octave := n.Pitch/12 - 1
		var step string
		var alter int
		if d.Key.Fifths < 0 {
			step, alter = flatSteps[pc], flatAlters[pc]
		} else {
			step, alter = sharpSteps[pc], sharpAlters[pc]
		}
		p := &xmlPitch{Step: step, Octave: octave}
		if alter != 0 {
			a := alter
			p.Alter = &a
		}
		xn.Pitch = p
	}

	if name, dotted, ok := noteTypeFor(n.Duration, d.Divisions); ok {
		xn.Type = name
		if dotted {
			xn.Dot = &xmlEmpty{}
		}
	}
	return xn
}

// noteTypeFor maps a duration in divisions to a notated type name,
// recognizing plain and single-dotted values. Irregular durations are
// notated without a type element.
func noteTypeFor(duration, divisions int) (string, bool, bool) {
	types := []struct {
		quarters float64
		name     string
	}{
		{4, "whole"}, {2, "half"}, {1, "quarter"},
		{0.5, "eighth"}, {0.25, "16th"},
	}
	quarters := float64(duration) / float64(divisions)
	for _, t := range types {
		if quarters == t.quarters {
			return t.name, false, true
		}
		if quarters == t.quarters*1.5 {
			return t.name, true, true
		}
	}
	return "", false, false
}
