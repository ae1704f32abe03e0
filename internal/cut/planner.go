package cut

import (
	"fmt"

	"github.com/maauso/firstcut/internal/audio"
	"github.com/maauso/firstcut/internal/timeline"
)

// The functions below work on sorted half-open intervals in any unit. The
// planner runs them in samples and again in ticks after quantizing.

// Invert returns the complement of sorted, disjoint silences over [0, total).
func Invert(silences []timeline.Interval, total int64) []timeline.Interval {
	var out []timeline.Interval
	var cursor int64
	for _, s := range silences {
		start, end := max(s.Start, 0), min(s.End, total)
		if start > cursor {
			out = append(out, timeline.Interval{Start: cursor, End: start})
		}
		cursor = max(cursor, end)
	}
	if cursor < total {
		out = append(out, timeline.Interval{Start: cursor, End: total})
	}
	return out
}

// Pad widens each speech interval by padding on both sides. Growth stops at
// the midpoint of the gap to the neighbouring interval (or to the bound) so
// padded neighbours can touch but never cross.
func Pad(speech []timeline.Interval, total, padding int64) []timeline.Interval {
	out := make([]timeline.Interval, len(speech))
	for i, iv := range speech {
		prevEnd, nextStart := int64(0), total
		if i > 0 {
			prevEnd = speech[i-1].End
		}
		if i < len(speech)-1 {
			nextStart = speech[i+1].Start
		}
		out[i] = timeline.Interval{
			Start: max(iv.Start-padding, midpoint(prevEnd, iv.Start), 0),
			End:   min(iv.End+padding, midpoint(iv.End, nextStart), total),
		}
	}
	return out
}

// midpoint of the gap [a, b).
func midpoint(a, b int64) int64 {
	return a + (b-a)/2
}

// Merge joins sorted intervals that touch or overlap.
func Merge(ivs []timeline.Interval) []timeline.Interval {
	var out []timeline.Interval
	for _, iv := range ivs {
		if iv.Start >= iv.End {
			continue
		}
		if n := len(out); n > 0 && iv.Start <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// DropShort discards intervals shorter than minLen.
func DropShort(ivs []timeline.Interval, minLen int64) []timeline.Interval {
	var out []timeline.Interval
	for _, iv := range ivs {
		if iv.Duration() >= minLen {
			out = append(out, iv)
		}
	}
	return out
}

// Planner converts detected silences into a cut plan.
type Planner struct {
	settings Settings
}

// NewPlanner validates settings and returns a planner.
func NewPlanner(settings Settings) (*Planner, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Planner{settings: settings}, nil
}

// Plan inverts the silences of seq's analysis signal into keep intervals,
// pads, merges and filters them, then snaps the result to the tick grid.
func (p *Planner) Plan(silences []audio.Interval, seq *timeline.Sequence) (timeline.CutPlan, error) {
	tb, rate := seq.Timebase, p.settings.SampleRate
	total := tb.TicksToSamples(seq.Duration, rate)

	raw := make([]timeline.Interval, len(silences))
	for i, s := range silences {
		raw[i] = timeline.Interval(s)
	}

	keep := Invert(raw, total)
	keep = Pad(keep, total, p.settings.samples(p.settings.Padding))
	keep = Merge(keep)
	keep = DropShort(keep, p.settings.samples(p.settings.MinClip))

	ticks := make([]timeline.Interval, 0, len(keep))
	for _, iv := range keep {
		ticks = append(ticks, timeline.Interval{
			Start: max(tb.SamplesToTicks(iv.Start, rate), 0),
			End:   min(tb.SamplesToTicks(iv.End, rate), seq.Duration),
		})
	}
	ticks = Merge(ticks)
	ticks = DropShort(ticks, tb.CeilTicks(p.settings.MinClip))

	if len(ticks) == 0 {
		return timeline.CutPlan{}, fmt.Errorf("%w: nothing longer than %.3fs survives in %q", ErrEmptyCutPlan, p.settings.MinClip, seq.Name)
	}
	return timeline.CutPlan{Intervals: ticks}, nil
}
