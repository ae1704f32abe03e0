package timeline

import (
	"fmt"
	"math"
)

// Timebase is the tick rate of a sequence. Rate is the nominal frames per
// second; NTSC timebases run at Rate*1000/1001 ticks per second.
type Timebase struct {
	Rate int
	NTSC bool
}

// Valid reports whether the timebase can be used for conversions.
func (tb Timebase) Valid() bool {
	return tb.Rate > 0
}

// ratio returns ticks per second as num/den.
func (tb Timebase) ratio() (num, den int64) {
	if tb.NTSC {
		return int64(tb.Rate) * 1000, 1001
	}
	return int64(tb.Rate), 1
}

// TicksPerSecond returns the exact tick rate as a float.
func (tb Timebase) TicksPerSecond() float64 {
	num, den := tb.ratio()
	return float64(num) / float64(den)
}

// Seconds converts a tick count to seconds.
func (tb Timebase) Seconds(ticks int64) float64 {
	num, den := tb.ratio()
	return float64(ticks) * float64(den) / float64(num)
}

// Ticks converts seconds to the nearest tick.
func (tb Timebase) Ticks(seconds float64) int64 {
	return int64(math.Round(seconds * tb.TicksPerSecond()))
}

// CeilTicks converts seconds to the smallest tick count that is not shorter.
func (tb Timebase) CeilTicks(seconds float64) int64 {
	// Absorb float noise so that exact multiples do not round up.
	return int64(math.Ceil(seconds*tb.TicksPerSecond() - 1e-9))
}

// TicksToSamples maps a tick position to the nearest sample index at sampleRate.
func (tb Timebase) TicksToSamples(ticks int64, sampleRate int) int64 {
	num, den := tb.ratio()
	return divRound(ticks*den*int64(sampleRate), num)
}

// SamplesToTicks maps a sample index at sampleRate to the nearest tick.
func (tb Timebase) SamplesToTicks(samples int64, sampleRate int) int64 {
	num, den := tb.ratio()
	return divRound(samples*num, den*int64(sampleRate))
}

func (tb Timebase) String() string {
	if tb.NTSC {
		return fmt.Sprintf("%d (NTSC %.3f fps)", tb.Rate, tb.TicksPerSecond())
	}
	return fmt.Sprintf("%d fps", tb.Rate)
}

// divRound divides rounding half away from zero. b must be positive.
func divRound(a, b int64) int64 {
	if a < 0 {
		return -divRound(-a, b)
	}
	return (2*a + b) / (2 * b)
}
