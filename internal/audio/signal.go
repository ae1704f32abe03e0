package audio

import "sort"

// Interval is a half-open span of samples.
type Interval struct {
	Start int64
	End   int64
}

// Duration returns the interval length in samples.
func (iv Interval) Duration() int64 {
	return iv.End - iv.Start
}

// segment is decoded audio placed at a sample offset.
type segment struct {
	offset  int64
	samples []float32
}

func (s segment) end() int64 {
	return s.offset + int64(len(s.samples))
}

// Signal is a mono amplitude signal aligned to the timeline. Only the decoded
// clip audio is stored; every other position reads as silence.
type Signal struct {
	sampleRate int
	length     int64
	segments   []segment
}

// NewSignal returns an all-silent signal of length samples.
func NewSignal(sampleRate int, length int64) *Signal {
	return &Signal{sampleRate: sampleRate, length: length}
}

// SampleRate returns the signal rate in Hz.
func (s *Signal) SampleRate() int {
	return s.sampleRate
}

// Len returns the signal length in samples.
func (s *Signal) Len() int64 {
	return s.length
}

// Place writes samples at offset. Samples falling outside [0, Len()) are
// discarded. Segments must be placed in increasing, non-overlapping order.
func (s *Signal) Place(offset int64, samples []float32) {
	if offset < 0 {
		skip := -offset
		if skip >= int64(len(samples)) {
			return
		}
		samples = samples[skip:]
		offset = 0
	}
	if offset >= s.length || len(samples) == 0 {
		return
	}
	if room := s.length - offset; int64(len(samples)) > room {
		samples = samples[:room]
	}
	s.segments = append(s.segments, segment{offset: offset, samples: samples})
}

// SumSquares returns the sum of squared amplitudes over [start, end).
func (s *Signal) SumSquares(start, end int64) float64 {
	i := sort.Search(len(s.segments), func(i int) bool {
		return s.segments[i].end() > start
	})
	var sum float64
	for ; i < len(s.segments) && s.segments[i].offset < end; i++ {
		seg := s.segments[i]
		lo := max(start, seg.offset) - seg.offset
		hi := min(end, seg.end()) - seg.offset
		for _, v := range seg.samples[lo:hi] {
			sum += float64(v) * float64(v)
		}
	}
	return sum
}
