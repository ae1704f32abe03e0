package timeline

import "fmt"

// Interval is a half-open span on the original timeline. Cut plans hold
// ticks; planning steps also use it for sample positions.
type Interval struct {
	Start int64
	End   int64
}

// Duration returns the interval length.
func (iv Interval) Duration() int64 {
	return iv.End - iv.Start
}

// Intersect returns the overlap of two intervals and whether it is non-empty.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	out := Interval{Start: max(iv.Start, o.Start), End: min(iv.End, o.End)}
	return out, out.Start < out.End
}

// CutPlan is the ordered list of keep intervals applied to every track.
type CutPlan struct {
	Intervals []Interval
}

// FullPlan returns a plan that keeps the whole sequence.
func FullPlan(duration int64) CutPlan {
	return CutPlan{Intervals: []Interval{{Start: 0, End: duration}}}
}

// Duration returns the length of the rewritten sequence.
func (p CutPlan) Duration() int64 {
	var total int64
	for _, iv := range p.Intervals {
		total += iv.Duration()
	}
	return total
}

// Removed returns the number of ticks the plan cuts from a sequence of the given length.
func (p CutPlan) Removed(duration int64) int64 {
	return duration - p.Duration()
}

// Validate checks that intervals are non-empty, sorted, disjoint and inside
// [0, duration).
func (p CutPlan) Validate(duration int64) error {
	if len(p.Intervals) == 0 {
		return fmt.Errorf("%w: no intervals", ErrInvalidCutPlan)
	}
	var prevEnd int64
	for i, iv := range p.Intervals {
		if iv.Start >= iv.End {
			return fmt.Errorf("%w: interval %d [%d, %d) is empty", ErrInvalidCutPlan, i, iv.Start, iv.End)
		}
		if iv.Start < prevEnd || iv.Start < 0 {
			return fmt.Errorf("%w: interval %d [%d, %d) overlaps or precedes its neighbour", ErrInvalidCutPlan, i, iv.Start, iv.End)
		}
		if iv.End > duration {
			return fmt.Errorf("%w: interval %d ends at %d past duration %d", ErrInvalidCutPlan, i, iv.End, duration)
		}
		prevEnd = iv.End
	}
	return nil
}

// segment is one affine piece of the old-time to new-time mapping.
type segment struct {
	Interval
	outStart int64
}

func (p CutPlan) segments() []segment {
	out := make([]segment, len(p.Intervals))
	var cursor int64
	for i, iv := range p.Intervals {
		out[i] = segment{Interval: iv, outStart: cursor}
		cursor += iv.Duration()
	}
	return out
}

// Map converts an original timeline position inside a keep interval to its
// position on the rewritten timeline.
func (p CutPlan) Map(tick int64) (int64, bool) {
	for _, seg := range p.segments() {
		if tick >= seg.Start && tick < seg.End {
			return seg.outStart + tick - seg.Start, true
		}
	}
	return 0, false
}
