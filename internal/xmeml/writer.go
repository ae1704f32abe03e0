package xmeml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/maauso/firstcut/internal/timeline"
)

// outputPosition is where a clip lands in the written sequence.
type outputPosition struct {
	kind  timeline.TrackKind
	track int
	clip  int
}

// Encode serializes seq onto a copy of the source document. Track items are
// rebuilt from their source elements; everything else in the document is kept.
// The receiver is not modified.
func (d *Document) Encode(seq *timeline.Sequence) ([]byte, error) {
	out := d.doc.Copy()
	seqEl := findSequence(out)
	if seqEl == nil {
		return nil, malformed("no <sequence> element")
	}

	video, audio := scanTracks(seqEl)
	templates := make(map[string]*etree.Element)
	for _, st := range append(append([]scannedTrack(nil), video...), audio...) {
		for _, item := range st.items {
			templates[item.key] = item.el.Copy()
		}
	}
	// Definitions outside the sequence, such as in a bin, stay where they are.
	files := fileDefinitions(seqEl)
	for id, def := range files {
		files[id] = def.Copy()
	}

	positions := make(map[string]outputPosition)
	for _, t := range seq.Tracks() {
		for i, c := range t.Clips {
			positions[c.ID] = outputPosition{kind: t.Kind, track: t.Index, clip: i + 1}
		}
	}

	w := &writer{templates: templates, files: files, positions: positions, emitted: make(map[string]bool)}
	if err := w.writeTracks(video, seq.Video); err != nil {
		return nil, err
	}
	if err := w.writeTracks(audio, seq.Audio); err != nil {
		return nil, err
	}

	setChildText(seqEl, "duration", strconv.FormatInt(seq.Duration, 10))
	if outEl := seqEl.SelectElement("out"); outEl != nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(outEl.Text()), 10, 64); err == nil && v >= 0 {
			outEl.SetText(strconv.FormatInt(seq.Duration, 10))
		}
	}

	ensureHeader(out)
	out.Indent(2)
	return out.WriteToBytes()
}

type writer struct {
	templates map[string]*etree.Element
	files     map[string]*etree.Element
	positions map[string]outputPosition
	// emitted records file ids whose definition has been written.
	emitted map[string]bool
}

func (w *writer) writeTracks(scanned []scannedTrack, tracks []timeline.Track) error {
	for _, track := range tracks {
		if track.Index < 1 || track.Index > len(scanned) {
			return fmt.Errorf("%s track %d is not in the source document", track.Kind, track.Index)
		}
		trackEl := scanned[track.Index-1].el
		anchor := clearItems(trackEl)

		for _, clip := range track.Clips {
			el, err := w.clipElement(clip)
			if err != nil {
				return fmt.Errorf("%s track %d: %w", track.Kind, track.Index, err)
			}
			if anchor != nil {
				trackEl.InsertChild(anchor, el)
			} else {
				trackEl.AddChild(el)
			}
		}
	}
	return nil
}

// clearItems removes every item and transition from a track and returns the
// element the rebuilt items should precede, or nil to append them.
func clearItems(trackEl *etree.Element) *etree.Element {
	var anchor *etree.Element
	sawItem := false
	for _, child := range trackEl.ChildElements() {
		switch child.Tag {
		case tagClipItem, tagGenerator, tagTransition:
			trackEl.RemoveChild(child)
			sawItem = true
			anchor = nil
		default:
			if sawItem && anchor == nil {
				anchor = child
			}
		}
	}
	return anchor
}

func (w *writer) clipElement(clip timeline.ClipItem) (*etree.Element, error) {
	tmpl, ok := w.templates[clip.SourceID]
	if !ok {
		return nil, fmt.Errorf("clip %q has no source element %q", clip.ID, clip.SourceID)
	}
	el := tmpl.Copy()

	if attr := el.SelectAttr("id"); attr != nil {
		attr.Value = clip.ID
	} else {
		el.CreateAttr("id", clip.ID)
	}
	setChildText(el, "start", strconv.FormatInt(clip.TimelineStart, 10))
	setChildText(el, "end", strconv.FormatInt(clip.TimelineEnd, 10))
	setChildText(el, "in", strconv.FormatInt(clip.SourceIn, 10))
	setChildText(el, "out", strconv.FormatInt(clip.SourceOut, 10))

	if fileEl := el.SelectElement(tagFile); fileEl != nil {
		w.writeFile(fileEl)
	}
	w.writeLinks(el, clip.Links)
	return el, nil
}

// writeFile makes the first reference to each file id carry the full
// definition and reduces later references to the bare id.
func (w *writer) writeFile(fileEl *etree.Element) {
	id := fileEl.SelectAttrValue("id", "")
	if id == "" {
		return
	}
	if w.emitted[id] {
		for _, c := range append([]etree.Token(nil), fileEl.Child...) {
			fileEl.RemoveChild(c)
		}
		var extra []string
		for _, a := range fileEl.Attr {
			if a.Key == "id" {
				continue
			}
			if a.Space != "" {
				extra = append(extra, a.Space+":"+a.Key)
			} else {
				extra = append(extra, a.Key)
			}
		}
		for _, key := range extra {
			fileEl.RemoveAttr(key)
		}
		return
	}

	w.emitted[id] = true
	def, ok := w.files[id]
	if !ok || len(fileEl.ChildElements()) > 0 {
		return
	}
	full := def.Copy()
	for _, c := range append([]etree.Token(nil), full.Child...) {
		fileEl.AddChild(c)
	}
}

// writeLinks replaces the template's links with the ones that survived,
// indexed by their output positions.
func (w *writer) writeLinks(el *etree.Element, links []timeline.Link) {
	var anchor *etree.Element
	sawLink := false
	for _, child := range el.ChildElements() {
		if child.Tag == tagLink {
			el.RemoveChild(child)
			sawLink = true
			anchor = nil
			continue
		}
		if sawLink && anchor == nil {
			anchor = child
		}
	}

	for _, link := range links {
		pos, ok := w.positions[link.ClipRef]
		if !ok {
			continue
		}
		linkEl := el.CreateElement(tagLink)
		if anchor != nil {
			el.RemoveChild(linkEl)
			el.InsertChild(anchor, linkEl)
		}
		linkEl.CreateElement("linkclipref").SetText(link.ClipRef)
		linkEl.CreateElement("mediatype").SetText(string(pos.kind))
		linkEl.CreateElement("trackindex").SetText(strconv.Itoa(pos.track))
		linkEl.CreateElement("clipindex").SetText(strconv.Itoa(pos.clip))
		if link.GroupIndex > 0 {
			linkEl.CreateElement("groupindex").SetText(strconv.Itoa(link.GroupIndex))
		}
	}
}

func setChildText(el *etree.Element, tag, value string) {
	c := el.SelectElement(tag)
	if c == nil {
		c = el.CreateElement(tag)
	}
	c.SetText(value)
}

// ensureHeader adds an XML declaration when the source had none.
func ensureHeader(doc *etree.Document) {
	for _, t := range doc.Child {
		if pi, ok := t.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	pi := doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	if len(doc.Child) > 1 {
		doc.RemoveChild(pi)
		doc.InsertChild(doc.Child[0], pi)
	}
}
