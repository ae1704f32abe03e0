package audio

import (
	"iter"
	"math"
)

// DBToAmplitude converts a dBFS level to a linear RMS amplitude.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// Detect classifies each window as silent when its RMS is below threshold and
// returns the runs of silent windows lasting at least minSilence samples.
// Shorter runs count as speech. A zero threshold never reports silence.
func Detect(windows iter.Seq[Window], threshold float64, minSilence int64) []Interval {
	var (
		out       []Interval
		run       Interval
		inSilence bool
	)
	flush := func() {
		if inSilence && run.Duration() >= minSilence {
			out = append(out, run)
		}
		inSilence = false
	}

	for w := range windows {
		if w.RMS < threshold {
			if !inSilence {
				run = Interval{Start: w.Start}
				inSilence = true
			}
			run.End = w.End
			continue
		}
		flush()
	}
	flush()
	return out
}
