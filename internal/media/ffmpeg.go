package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"

	"github.com/maauso/firstcut/internal/audio"
)

// Static errors for media operations.
var (
	// ErrInvalidDuration is returned when a decode request has no length.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidSampleRate is returned when a decode request has no sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoAudioStream is returned when a media file carries no audio.
	ErrNoAudioStream = errors.New("no audio stream")
)

// bytesPerSample is the width of one f32le sample.
const bytesPerSample = 4

// FFmpegDecoder implements audio.Decoder using the ffmpeg CLI. Each file is
// probed once before its first decode.
type FFmpegDecoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	prober     Prober
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegDecoder(ffmpegPath string, prober Prober) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, prober: prober}
}

// Decode streams mono f32le PCM for the requested range from ffmpeg's stdout.
func (d *FFmpegDecoder) Decode(ctx context.Context, req audio.DecodeRequest) ([]float32, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, req.Duration)
	}
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, req.SampleRate)
	}
	if _, err := os.Stat(req.Path); err != nil {
		return nil, fmt.Errorf("stat media: %w", err)
	}

	if d.prober != nil {
		info, err := d.prober.Probe(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		if info.AudioStreamCount() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoAudioStream, req.Path)
		}
	}

	args := decodeArgs(req)
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	expected := int(math.Ceil(req.Duration * float64(req.SampleRate)))
	samples, readErr := readPCM(stdout, expected)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	}
	if waitErr != nil {
		return nil, &FFmpegError{Args: args, Stderr: stderr.String(), Err: waitErr}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read pcm: %w", readErr)
	}
	return samples, nil
}

// decodeArgs builds the ffmpeg arguments that emit raw mono PCM on stdout.
func decodeArgs(req audio.DecodeRequest) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-ss", strconv.FormatFloat(req.Start, 'f', 6, 64),
		"-t", strconv.FormatFloat(req.Duration, 'f', 6, 64),
		"-i", req.Path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(req.SampleRate),
		"-f", "f32le",
		"pipe:1",
	}
}

// readPCM decodes little-endian float32 samples until EOF. A trailing partial
// sample is discarded.
func readPCM(r io.Reader, sizeHint int) ([]float32, error) {
	out := make([]float32, 0, max(0, sizeHint))
	reader := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 16*1024)

	for {
		n, err := io.ReadFull(reader, buf)
		whole := n - n%bytesPerSample
		for i := 0; i < whole; i += bytesPerSample {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return out, nil
		default:
			return out, err
		}
	}
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ audio.Decoder = (*FFmpegDecoder)(nil)
