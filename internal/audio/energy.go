package audio

import (
	"iter"
	"math"
)

// Window is one analysis frame of the signal.
type Window struct {
	Start int64
	End   int64
	RMS   float64
}

// Analyzer measures per-window RMS energy.
type Analyzer struct {
	// WindowSamples is the frame length in samples.
	WindowSamples int64
}

// NewAnalyzer returns an analyzer whose frames last frameWindow seconds at
// sampleRate, never shorter than one sample.
func NewAnalyzer(frameWindow float64, sampleRate int) Analyzer {
	n := int64(math.Round(frameWindow * float64(sampleRate)))
	return Analyzer{WindowSamples: max(1, n)}
}

// Windows partitions the signal into consecutive frames and yields the RMS of
// each. The last frame may be shorter. The sequence is evaluated lazily and may
// be ranged over more than once.
func (a Analyzer) Windows(sig *Signal) iter.Seq[Window] {
	size := max(1, a.WindowSamples)
	return func(yield func(Window) bool) {
		for start := int64(0); start < sig.Len(); start += size {
			end := min(start+size, sig.Len())
			rms := math.Sqrt(sig.SumSquares(start, end) / float64(end-start))
			if !yield(Window{Start: start, End: end, RMS: rms}) {
				return
			}
		}
	}
}
