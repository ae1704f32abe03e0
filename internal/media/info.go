// Package media adapts the ffmpeg and ffprobe command line tools to the audio
// decoding port.
package media

import (
	"context"
	"strconv"
	"strings"
)

// Prober defines the interface for inspecting media files.
type Prober interface {
	// Probe returns the stream and container metadata of the file at path.
	Probe(ctx context.Context, path string) (Info, error)
}

// Info is the parsed output of an ffprobe inspection.
type Info struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// AudioStreamCount returns the number of audio streams in the file.
func (i Info) AudioStreamCount() int {
	count := 0
	for _, s := range i.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, or 0 when unknown.
func (i Info) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(i.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
