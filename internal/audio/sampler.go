package audio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maauso/firstcut/internal/timeline"
)

// errNoMediaPath is the cause reported for clips without a resolvable file.
var errNoMediaPath = errors.New("clip has no media path")

// Sampler builds the analysis signal of a sequence from its primary audio track.
type Sampler struct {
	decoder    Decoder
	sampleRate int
	logger     *slog.Logger
}

// NewSampler creates a sampler decoding at sampleRate Hz.
func NewSampler(decoder Decoder, sampleRate int, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{decoder: decoder, sampleRate: sampleRate, logger: logger}
}

// Sample decodes every clip of the primary audio track and places its audio at
// the clip's timeline position. The signal spans the whole sequence; gaps and
// generator items read as silence.
func (s *Sampler) Sample(ctx context.Context, seq *timeline.Sequence) (*Signal, error) {
	track, err := seq.PrimaryAudio()
	if err != nil {
		return nil, err
	}

	tb := seq.Timebase
	sig := NewSignal(s.sampleRate, tb.TicksToSamples(seq.Duration, s.sampleRate))

	for _, clip := range track.Clips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if clip.Kind == timeline.ItemGenerator {
			continue
		}
		if clip.Media.Path == "" {
			return nil, &MediaError{ClipID: clip.ID, Err: errNoMediaPath}
		}

		start := tb.TicksToSamples(clip.TimelineStart, s.sampleRate)
		end := tb.TicksToSamples(clip.TimelineEnd, s.sampleRate)

		samples, err := s.decoder.Decode(ctx, DecodeRequest{
			Path:       clip.Media.Path,
			Start:      tb.Seconds(clip.SourceIn),
			Duration:   tb.Seconds(clip.Duration()),
			SampleRate: s.sampleRate,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &MediaError{ClipID: clip.ID, Path: clip.Media.Path, Err: err}
		}
		if want := end - start; int64(len(samples)) > want {
			samples = samples[:want]
		}

		s.logger.Debug("decoded clip audio",
			slog.String("clip_id", clip.ID),
			slog.String("path", clip.Media.Path),
			slog.Int64("offset", start),
			slog.Int("samples", len(samples)),
		)
		sig.Place(start, samples)
	}

	return sig, nil
}
