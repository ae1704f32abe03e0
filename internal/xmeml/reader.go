// Package xmeml reads editing sequences from Final Cut Pro 7 / Premiere XML
// interchange files into the timeline model and writes rewritten sequences
// back onto a copy of the source document.
package xmeml

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/maauso/firstcut/internal/timeline"
)

// Element names of the interchange format.
const (
	tagSequence   = "sequence"
	tagClipItem   = "clipitem"
	tagGenerator  = "generatoritem"
	tagTransition = "transitionitem"
	tagFile       = "file"
	tagLink       = "link"
)

// Document is a parsed interchange file. The parsed tree is kept unchanged so
// that any number of rewritten sequences can be serialized from it.
type Document struct {
	doc      *etree.Document
	baseDir  string
	sequence *timeline.Sequence
}

// Sequence returns a copy of the first sequence in the document.
func (d *Document) Sequence() *timeline.Sequence {
	return d.sequence.Clone()
}

// ReadFile parses the interchange file at path. Relative media paths resolve
// against the file's directory.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	return Decode(data, filepath.Dir(path))
}

// Decode parses an interchange document held in memory.
func Decode(data []byte, baseDir string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, malformed("parse xml: %v", err)
	}
	if doc.Root() == nil {
		return nil, malformed("document has no root element")
	}

	seqEl := findSequence(doc)
	if seqEl == nil {
		return nil, malformed("no <sequence> element")
	}

	seq, err := parseSequence(seqEl, fileDefinitions(doc.Root()), baseDir)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, baseDir: baseDir, sequence: seq}, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", timeline.ErrMalformedTimeline, fmt.Sprintf(format, args...))
}

// findSequence returns the first sequence, preferring a direct child of the root.
func findSequence(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root.Tag == tagSequence {
		return root
	}
	if el := root.SelectElement(tagSequence); el != nil {
		return el
	}
	return root.FindElement(".//" + tagSequence)
}

// fileDefinitions maps file ids to their first full definition.
func fileDefinitions(root *etree.Element) map[string]*etree.Element {
	defs := make(map[string]*etree.Element)
	for _, el := range root.FindElements(".//" + tagFile) {
		id := el.SelectAttrValue("id", "")
		if id == "" || len(el.ChildElements()) == 0 {
			continue
		}
		if _, ok := defs[id]; !ok {
			defs[id] = el
		}
	}
	return defs
}

// scannedTrack is a track element and its item elements keyed by the ids the
// model uses for them.
type scannedTrack struct {
	el    *etree.Element
	items []scannedItem
}

type scannedItem struct {
	key string
	el  *etree.Element
}

// scanTracks lists the video and audio tracks of a sequence. Items keep their
// id attribute; items without one, or repeating an earlier id, get a
// positional key. Reader and writer use it to agree on item identity.
func scanTracks(seqEl *etree.Element) (video, audio []scannedTrack) {
	seen := make(map[string]bool)
	scan := func(kind timeline.TrackKind) []scannedTrack {
		var out []scannedTrack
		for ti, trackEl := range seqEl.FindElements("./media/" + string(kind) + "/track") {
			st := scannedTrack{el: trackEl}
			pos := 0
			for _, child := range trackEl.ChildElements() {
				if child.Tag != tagClipItem && child.Tag != tagGenerator {
					continue
				}
				pos++
				key := child.SelectAttrValue("id", "")
				if key == "" || seen[key] {
					key = fmt.Sprintf("%s-%d-item-%d", kind, ti+1, pos)
				}
				seen[key] = true
				st.items = append(st.items, scannedItem{key: key, el: child})
			}
			out = append(out, st)
		}
		return out
	}
	return scan(timeline.KindVideo), scan(timeline.KindAudio)
}

func parseSequence(seqEl *etree.Element, files map[string]*etree.Element, baseDir string) (*timeline.Sequence, error) {
	seq := &timeline.Sequence{
		ID:   seqEl.SelectAttrValue("id", ""),
		Name: childText(seqEl, "name"),
	}

	tb, ok := parseRate(seqEl.SelectElement("rate"))
	if !ok {
		tb, ok = parseRate(seqEl.FindElement("./media/video/format/samplecharacteristics/rate"))
	}
	if !ok {
		return nil, malformed("sequence %q has no timebase", seq.Name)
	}
	seq.Timebase = tb

	video, audio := scanTracks(seqEl)
	if len(video) == 0 {
		return nil, malformed("sequence %q has no video track", seq.Name)
	}
	if len(audio) == 0 {
		return nil, malformed("sequence %q has no audio track", seq.Name)
	}

	var err error
	if seq.Video, err = parseTracks(video, timeline.KindVideo, files, baseDir); err != nil {
		return nil, err
	}
	if seq.Audio, err = parseTracks(audio, timeline.KindAudio, files, baseDir); err != nil {
		return nil, err
	}

	declared, _, err := childInt(seqEl, "duration")
	if err != nil {
		return nil, malformed("sequence duration: %v", err)
	}
	seq.Duration = declared
	for _, t := range seq.Tracks() {
		seq.Duration = max(seq.Duration, t.End())
	}

	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

// parseRate reads a <rate> element. NTSC rates run 1000/1001 slower.
func parseRate(rateEl *etree.Element) (timeline.Timebase, bool) {
	if rateEl == nil {
		return timeline.Timebase{}, false
	}
	text := childText(rateEl, "timebase")
	rate, err := strconv.Atoi(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return timeline.Timebase{}, false
		}
		rate = int(f + 0.5)
	}
	tb := timeline.Timebase{Rate: rate, NTSC: strings.EqualFold(childText(rateEl, "ntsc"), "TRUE")}
	return tb, tb.Valid()
}

func parseTracks(scanned []scannedTrack, kind timeline.TrackKind, files map[string]*etree.Element, baseDir string) ([]timeline.Track, error) {
	tracks := make([]timeline.Track, 0, len(scanned))
	for i, st := range scanned {
		track := timeline.Track{Kind: kind, Index: i + 1}
		for _, item := range st.items {
			clip, err := parseItem(item, files, baseDir)
			if err != nil {
				return nil, fmt.Errorf("%s track %d: %w", kind, track.Index, err)
			}
			track.Clips = append(track.Clips, clip)
		}
		track.SortClips()
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func parseItem(item scannedItem, files map[string]*etree.Element, baseDir string) (timeline.ClipItem, error) {
	el := item.el
	clip := timeline.ClipItem{
		ID:       item.key,
		SourceID: item.key,
		Name:     childText(el, "name"),
		Kind:     timeline.ItemKind(el.Tag),
	}

	start, hasStart, err := childInt(el, "start")
	if err != nil {
		return clip, malformed("item %q: %v", item.key, err)
	}
	end, hasEnd, err := childInt(el, "end")
	if err != nil {
		return clip, malformed("item %q: %v", item.key, err)
	}
	in, _, err := childInt(el, "in")
	if err != nil {
		return clip, malformed("item %q: %v", item.key, err)
	}
	out, hasOut, err := childInt(el, "out")
	if err != nil {
		return clip, malformed("item %q: %v", item.key, err)
	}
	if !hasStart || !hasEnd {
		return clip, malformed("item %q has no start or end", item.key)
	}

	// -1 marks an edge hidden under a transition.
	switch {
	case start < 0 && end < 0:
		return clip, malformed("item %q has no resolvable position", item.key)
	case start < 0:
		if !hasOut {
			return clip, malformed("item %q starts under a transition without in/out", item.key)
		}
		start = end - (out - in)
	case end < 0:
		if !hasOut {
			return clip, malformed("item %q ends under a transition without in/out", item.key)
		}
		end = start + (out - in)
	}
	if !hasOut {
		out = in + (end - start)
	}

	clip.TimelineStart, clip.TimelineEnd = start, end
	clip.SourceIn, clip.SourceOut = in, out

	if fileEl := el.SelectElement(tagFile); fileEl != nil {
		clip.Media.FileID = fileEl.SelectAttrValue("id", "")
		raw := childText(fileEl, "pathurl")
		if raw == "" {
			if def, ok := files[clip.Media.FileID]; ok {
				raw = childText(def, "pathurl")
			}
		}
		clip.Media.Path = PathFromURL(raw, baseDir)
	}

	for _, linkEl := range el.SelectElements(tagLink) {
		link, err := parseLink(linkEl)
		if err != nil {
			return clip, malformed("item %q: %v", item.key, err)
		}
		if link.ClipRef != "" {
			clip.Links = append(clip.Links, link)
		}
	}

	if err := clip.Validate(); err != nil {
		return clip, err
	}
	return clip, nil
}

func parseLink(el *etree.Element) (timeline.Link, error) {
	link := timeline.Link{
		ClipRef:   childText(el, "linkclipref"),
		MediaType: childText(el, "mediatype"),
	}
	for tag, dst := range map[string]*int{
		"trackindex": &link.TrackIndex,
		"clipindex":  &link.ClipIndex,
		"groupindex": &link.GroupIndex,
	} {
		v, _, err := childInt(el, tag)
		if err != nil {
			return link, fmt.Errorf("link: %w", err)
		}
		*dst = int(v)
	}
	return link, nil
}

func childText(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// childInt reads an integer child. Fractional values are truncated.
func childInt(el *etree.Element, tag string) (int64, bool, error) {
	text := childText(el, tag)
	if text == "" {
		return 0, false, nil
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, true, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("<%s> is not a number: %q", tag, text)
	}
	return int64(f), true, nil
}
