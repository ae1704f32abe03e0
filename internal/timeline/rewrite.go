package timeline

import "fmt"

// Rewrite applies plan to every track of seq and returns the rewritten
// sequence. seq is not modified.
//
// Every track is mapped through the same piecewise function: the output cursor
// advances once per keep interval, so clips cut from the same interval land on
// identical positions regardless of their track. Clips outside every interval
// are dropped. A clip that survives whole keeps its id; trimmed or split clips
// get fresh ids and lose their links, as do links pointing at them. Fresh ids
// never collide with an id of the source sequence.
func Rewrite(seq *Sequence, plan CutPlan) (*Sequence, error) {
	if err := plan.Validate(seq.Duration); err != nil {
		return nil, err
	}
	segs := plan.segments()

	out := &Sequence{
		ID:       seq.ID,
		Name:     seq.Name,
		Timebase: seq.Timebase,
		Duration: plan.Duration(),
	}

	r := &rewriter{segs: segs, intact: make(map[string]bool), used: make(map[string]bool)}
	for _, t := range seq.Tracks() {
		for _, c := range t.Clips {
			r.used[c.ID] = true
		}
	}
	out.Video = r.rewriteTracks(seq.Video)
	out.Audio = r.rewriteTracks(seq.Audio)

	for _, t := range out.Tracks() {
		for i := range t.Clips {
			t.Clips[i].Links = survivingLinks(t.Clips[i], r.intact)
		}
	}
	return out, nil
}

type rewriter struct {
	segs   []segment
	intact map[string]bool
	// used holds every clip id of the source and every id handed out.
	used map[string]bool
}

func (r *rewriter) rewriteTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = r.rewriteTrack(t)
	}
	return out
}

func (r *rewriter) rewriteTrack(t Track) Track {
	out := Track{Kind: t.Kind, Index: t.Index, Clips: make([]ClipItem, 0, len(t.Clips))}
	for _, clip := range t.Clips {
		span := Interval{Start: clip.TimelineStart, End: clip.TimelineEnd}
		var pieces []ClipItem
		for _, seg := range r.segs {
			overlap, ok := span.Intersect(seg.Interval)
			if !ok {
				continue
			}
			piece := clip
			piece.Links = nil
			piece.TimelineStart = seg.outStart + overlap.Start - seg.Start
			piece.TimelineEnd = piece.TimelineStart + overlap.Duration()
			piece.SourceIn = clip.SourceIn + overlap.Start - clip.TimelineStart
			piece.SourceOut = piece.SourceIn + overlap.Duration()
			pieces = append(pieces, piece)
		}

		if len(pieces) == 1 && pieces[0].Duration() == clip.Duration() {
			pieces[0].Links = clip.Links
			r.intact[clip.ID] = true
		} else {
			suffix := 0
			for n := range pieces {
				pieces[n].ID, suffix = r.pieceID(clip.ID, suffix)
			}
		}
		out.Clips = append(out.Clips, pieces...)
	}
	return out
}

// pieceID returns the first unused id <clipID>_cut<n> with n > after.
func (r *rewriter) pieceID(clipID string, after int) (string, int) {
	for n := after + 1; ; n++ {
		id := fmt.Sprintf("%s_cut%d", clipID, n)
		if !r.used[id] {
			r.used[id] = true
			return id, n
		}
	}
}

func survivingLinks(c ClipItem, intact map[string]bool) []Link {
	if len(c.Links) == 0 || !intact[c.ID] {
		return nil
	}
	kept := make([]Link, 0, len(c.Links))
	for _, l := range c.Links {
		if intact[l.ClipRef] {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
