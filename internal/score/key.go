package score

import (
	"math"

	"github.com/ykzou1214/musictoolkit/internal/music"
)

// Krumhansl-Schmuckler key profiles (probe-tone ratings).
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// majorFifths maps a major tonic pitch class to its key signature,
// preferring the spelling with fewer accidentals (F# major over Gb).
var majorFifths = [12]int{0, -5, 2, -3, 4, -1, 6, 1, -4, 3, -2, 5}

// KeySignature is an inferred key: circle-of-fifths position plus mode.
type KeySignature struct {
	Fifths int    `json:"fifths"`
	Mode   string `json:"mode"`
}

const (
	ModeMajor = "major"
	ModeMinor = "minor"
)

// EstimateKey scores a duration-weighted pitch-class histogram against
// the 24 rotated major/minor profiles and returns the best-correlating
// candidate. Ties prefer the signature with fewer accidentals. An empty
// sequence yields C major.
func EstimateKey(seq music.NoteSequence) KeySignature {
	if len(seq) == 0 {
		return KeySignature{Fifths: 0, Mode: ModeMajor}
	}

	var hist [12]float64
	for _, n := range seq {
		weight := n.Duration
		if weight <= 0 {
			weight = 0.01
		}
		hist[music.PitchClass(n.Pitch)] += weight
	}

	best := KeySignature{Fifths: 0, Mode: ModeMajor}
	bestScore := math.Inf(-1)

	for tonic := 0; tonic < 12; tonic++ {
		for _, mode := range []string{ModeMajor, ModeMinor} {
			profile := majorProfile
			if mode == ModeMinor {
				profile = minorProfile
			}

			score := correlate(hist, profile, tonic)
			candidate := KeySignature{Fifths: fifthsFor(tonic, mode), Mode: mode}

			if score > bestScore+1e-9 {
				bestScore = score
				best = candidate
			} else if math.Abs(score-bestScore) <= 1e-9 && abs(candidate.Fifths) < abs(best.Fifths) {
				best = candidate
			}
		}
	}
	return best
}

func fifthsFor(tonic int, mode string) int {
	if mode == ModeMinor {
		// Relative major sits a minor third above.
		return majorFifths[(tonic+3)%12]
	}
	return majorFifths[tonic]
}

// correlate computes the Pearson correlation between the histogram and
// the profile rotated so that index 0 is the candidate tonic.
func correlate(hist [12]float64, profile [12]float64, tonic int) float64 {
	var meanH, meanP float64
	for i := 0; i < 12; i++ {
		meanH += hist[i]
		meanP += profile[i]
	}
	meanH /= 12
	meanP /= 12

	var num, denH, denP float64
	for i := 0; i < 12; i++ {
		h := hist[(tonic+i)%12] - meanH
		p := profile[i] - meanP
		num += h * p
		denH += h * h
		denP += p * p
	}
	if denH == 0 || denP == 0 {
		return 0
	}
	return num / math.Sqrt(denH*denP)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
