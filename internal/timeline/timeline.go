// Package timeline provides the in-memory model of an editing sequence and the
// rewriter that applies a cut plan to every track of it.
//
// The model is an owned tree: a Sequence owns its Tracks, a Track owns its
// ClipItems, and clips refer to one another only by id. All positions are
// integer ticks of the sequence Timebase.
package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// Static errors for timeline validation.
var (
	// ErrMalformedTimeline is returned when a timeline is missing required
	// elements or violates the model invariants.
	ErrMalformedTimeline = errors.New("malformed timeline")
	// ErrUnsupportedTrackLayout is returned when the primary audio track is
	// absent or has no clips to analyze.
	ErrUnsupportedTrackLayout = errors.New("unsupported track layout")
	// ErrInvalidCutPlan is returned when a cut plan is unsorted, overlapping or
	// outside the sequence.
	ErrInvalidCutPlan = errors.New("invalid cut plan")
)

// TrackKind distinguishes video tracks from audio tracks.
type TrackKind string

const (
	// KindVideo marks a video track.
	KindVideo TrackKind = "video"
	// KindAudio marks an audio track.
	KindAudio TrackKind = "audio"
)

// ItemKind is the markup element a clip was read from.
type ItemKind string

const (
	// ItemClip is a regular media clip.
	ItemClip ItemKind = "clipitem"
	// ItemGenerator is a generated clip (titles, mattes) without media.
	ItemGenerator ItemKind = "generatoritem"
)

// MediaRef identifies the media file a clip reads from.
type MediaRef struct {
	// FileID is the file identifier in the source markup.
	FileID string
	// Path is the local filesystem path of the media.
	Path string
}

// Link ties a clip to a companion clip on another track.
type Link struct {
	// ClipRef is the id of the linked clip.
	ClipRef string
	// MediaType is "video" or "audio".
	MediaType string
	// TrackIndex is the 1-based index of the linked clip's track.
	TrackIndex int
	// ClipIndex is the 1-based position of the linked clip in its track.
	ClipIndex int
	// GroupIndex groups linked audio channels; zero when absent.
	GroupIndex int
}

// ClipItem is a span of media placed on a track.
type ClipItem struct {
	ID       string
	SourceID string
	Name     string
	Kind     ItemKind
	Media    MediaRef

	TimelineStart int64
	TimelineEnd   int64
	SourceIn      int64
	SourceOut     int64

	Links []Link
}

// Duration returns the clip length in ticks.
func (c ClipItem) Duration() int64 {
	return c.TimelineEnd - c.TimelineStart
}

// Validate checks the duration-consistency invariants of a single clip.
func (c ClipItem) Validate() error {
	if c.TimelineStart < 0 || c.TimelineStart >= c.TimelineEnd {
		return fmt.Errorf("%w: clip %q spans [%d, %d)", ErrMalformedTimeline, c.ID, c.TimelineStart, c.TimelineEnd)
	}
	if c.SourceIn < 0 || c.SourceOut-c.SourceIn != c.TimelineEnd-c.TimelineStart {
		return fmt.Errorf("%w: clip %q source [%d, %d) does not match timeline length %d",
			ErrMalformedTimeline, c.ID, c.SourceIn, c.SourceOut, c.Duration())
	}
	return nil
}

// Track is an ordered, non-overlapping sequence of clips.
type Track struct {
	Kind  TrackKind
	Index int
	Clips []ClipItem
}

// SortClips orders clips by timeline start.
func (t *Track) SortClips() {
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].TimelineStart < t.Clips[j].TimelineStart
	})
}

// Validate checks every clip and the no-overlap rule. Clips must already be sorted.
func (t Track) Validate() error {
	for i, c := range t.Clips {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%s track %d: %w", t.Kind, t.Index, err)
		}
		if i > 0 && t.Clips[i-1].TimelineEnd > c.TimelineStart {
			return fmt.Errorf("%w: %s track %d: clip %q overlaps clip %q",
				ErrMalformedTimeline, t.Kind, t.Index, c.ID, t.Clips[i-1].ID)
		}
	}
	return nil
}

// End returns the end tick of the last clip, or zero for an empty track.
func (t Track) End() int64 {
	if len(t.Clips) == 0 {
		return 0
	}
	return t.Clips[len(t.Clips)-1].TimelineEnd
}

// Sequence is a complete timeline.
type Sequence struct {
	ID       string
	Name     string
	Timebase Timebase
	// Duration is the total sequence length in ticks.
	Duration int64
	Video    []Track
	Audio    []Track
}

// PrimaryAudio returns the audio track whose content drives silence detection.
func (s *Sequence) PrimaryAudio() (*Track, error) {
	if len(s.Audio) == 0 {
		return nil, fmt.Errorf("%w: sequence has no audio tracks", ErrUnsupportedTrackLayout)
	}
	track := &s.Audio[0]
	if len(track.Clips) == 0 {
		return nil, fmt.Errorf("%w: primary audio track %d has no clips", ErrUnsupportedTrackLayout, track.Index)
	}
	return track, nil
}

// Tracks returns all tracks, video first.
func (s *Sequence) Tracks() []*Track {
	out := make([]*Track, 0, len(s.Video)+len(s.Audio))
	for i := range s.Video {
		out = append(out, &s.Video[i])
	}
	for i := range s.Audio {
		out = append(out, &s.Audio[i])
	}
	return out
}

// Validate checks the sequence and all of its tracks.
func (s *Sequence) Validate() error {
	if !s.Timebase.Valid() {
		return fmt.Errorf("%w: sequence %q has no timebase", ErrMalformedTimeline, s.Name)
	}
	for _, t := range s.Tracks() {
		if err := t.Validate(); err != nil {
			return err
		}
		if end := t.End(); end > s.Duration {
			return fmt.Errorf("%w: %s track %d ends at %d after sequence duration %d",
				ErrMalformedTimeline, t.Kind, t.Index, end, s.Duration)
		}
	}
	return nil
}

// Clone returns a deep copy of the sequence.
func (s *Sequence) Clone() *Sequence {
	out := *s
	out.Video = cloneTracks(s.Video)
	out.Audio = cloneTracks(s.Audio)
	return &out
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = Track{Kind: t.Kind, Index: t.Index, Clips: make([]ClipItem, len(t.Clips))}
		for j, c := range t.Clips {
			c.Links = append([]Link(nil), c.Links...)
			out[i].Clips[j] = c
		}
	}
	return out
}
