// Package audio turns the primary audio track of a sequence into a mono
// signal and finds the long silences in it.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrMediaUnavailable is returned when a referenced media file is missing or
// cannot be decoded.
var ErrMediaUnavailable = errors.New("media unavailable")

// MediaError reports which clip and which file could not be decoded.
type MediaError struct {
	ClipID string
	Path   string
	Err    error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("%v: clip %q (%s): %v", ErrMediaUnavailable, e.ClipID, e.Path, e.Err)
}

// Unwrap exposes both ErrMediaUnavailable and the underlying cause.
func (e *MediaError) Unwrap() []error {
	return []error{ErrMediaUnavailable, e.Err}
}

// DecodeRequest selects a slice of a media file to decode.
type DecodeRequest struct {
	// Path is the media file on local disk.
	Path string
	// Start is the offset into the media in seconds.
	Start float64
	// Duration is the length to decode in seconds.
	Duration float64
	// SampleRate is the output rate in Hz.
	SampleRate int
}

// Decoder defines the interface for turning media into mono PCM samples.
type Decoder interface {
	// Decode returns the requested slice of the media as mono float samples
	// in [-1, 1] at req.SampleRate. It may return fewer samples than requested
	// when the media ends early.
	Decode(ctx context.Context, req DecodeRequest) ([]float32, error)
}
