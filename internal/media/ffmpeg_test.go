package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/firstcut/internal/audio"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestTone writes a mono 16 kHz WAV: tone, silence, tone.
func createTestTone(t *testing.T, path string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=16000:duration=1",
		"-f", "lavfi", "-i", "anullsrc=channel_layout=mono:sample_rate=16000:d=1",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=16000:duration=1",
		"-filter_complex", "[0:a][1:a][2:a]concat=n=3:v=0:a=1[out]",
		"-map", "[out]",
		"-ar", "16000", "-ac", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test tone: %v\noutput: %s", err, output)
	}
}

// createTestVideo writes a short video without an audio stream.
func createTestVideo(t *testing.T, path string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=1",
		"-c:v", "libx264", "-preset", "ultrafast",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, path string) (Info, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(Info), args.Error(1)
}

func TestNewFFmpegDecoder(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		d := NewFFmpegDecoder("", nil)
		assert.Equal(t, "ffmpeg", d.ffmpegPath)
	})

	t.Run("custom path", func(t *testing.T) {
		d := NewFFmpegDecoder("/usr/local/bin/ffmpeg", nil)
		assert.Equal(t, "/usr/local/bin/ffmpeg", d.ffmpegPath)
	})

	t.Run("default ffprobe path", func(t *testing.T) {
		assert.Equal(t, "ffprobe", NewFFprobe("").ffprobePath)
	})
}

func TestFFmpegDecoder_Decode(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	createTestTone(t, path)

	d := NewFFmpegDecoder("", NewCachedProber(NewFFprobe("")))
	ctx := context.Background()

	t.Run("whole file", func(t *testing.T) {
		samples, err := d.Decode(ctx, audio.DecodeRequest{Path: path, Duration: 3, SampleRate: 16000})
		require.NoError(t, err)
		assert.InDelta(t, 48000, len(samples), 160)
	})

	t.Run("silent middle", func(t *testing.T) {
		samples, err := d.Decode(ctx, audio.DecodeRequest{Path: path, Start: 1.1, Duration: 0.8, SampleRate: 16000})
		require.NoError(t, err)
		assert.InDelta(t, 12800, len(samples), 160)
		assert.Less(t, rms(samples), 0.001)
	})

	t.Run("tone", func(t *testing.T) {
		samples, err := d.Decode(ctx, audio.DecodeRequest{Path: path, Start: 0.1, Duration: 0.8, SampleRate: 8000})
		require.NoError(t, err)
		assert.InDelta(t, 6400, len(samples), 80)
		assert.Greater(t, rms(samples), 0.1)
	})

	t.Run("past the end", func(t *testing.T) {
		samples, err := d.Decode(ctx, audio.DecodeRequest{Path: path, Start: 2.5, Duration: 2, SampleRate: 16000})
		require.NoError(t, err)
		assert.Less(t, len(samples), 16000)
	})
}

func TestFFmpegDecoder_NoAudioStream(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := filepath.Join(t.TempDir(), "video.mp4")
	createTestVideo(t, path)

	d := NewFFmpegDecoder("", NewFFprobe(""))
	_, err := d.Decode(context.Background(), audio.DecodeRequest{Path: path, Duration: 1, SampleRate: 16000})
	assert.ErrorIs(t, err, ErrNoAudioStream)
}

func TestFFmpegDecoder_ValidatesRequest(t *testing.T) {
	d := NewFFmpegDecoder("", nil)
	ctx := context.Background()

	_, err := d.Decode(ctx, audio.DecodeRequest{Path: "x.wav", Duration: 0, SampleRate: 16000})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = d.Decode(ctx, audio.DecodeRequest{Path: "x.wav", Duration: 1})
	assert.ErrorIs(t, err, ErrInvalidSampleRate)

	_, err = d.Decode(ctx, audio.DecodeRequest{Path: filepath.Join(t.TempDir(), "missing.wav"), Duration: 1, SampleRate: 16000})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFFmpegDecoder_ProbeRejectsSilentContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mov")
	require.NoError(t, os.WriteFile(path, []byte("not media"), 0o600))

	prober := new(mockProber)
	prober.On("Probe", mock.Anything, path).Return(Info{Streams: []Stream{{CodecType: "video"}}}, nil)

	d := NewFFmpegDecoder("", prober)
	_, err := d.Decode(context.Background(), audio.DecodeRequest{Path: path, Duration: 1, SampleRate: 16000})
	assert.ErrorIs(t, err, ErrNoAudioStream)
	prober.AssertExpectations(t)
}

func TestFFmpegDecoder_ContextCancellation(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	createTestTone(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	d := NewFFmpegDecoder("", nil)
	_, err := d.Decode(ctx, audio.DecodeRequest{Path: path, Duration: 3, SampleRate: 16000})
	assert.Error(t, err)
}

func TestReadPCM(t *testing.T) {
	var buf bytes.Buffer
	want := []float32{0, 0.5, -0.25, 1}
	for _, v := range want {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	// trailing partial sample
	buf.Write([]byte{0x01, 0x02})

	got, err := readPCM(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadPCM_LargeStream(t *testing.T) {
	var buf bytes.Buffer
	const n = 50000
	for i := range n {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(i%7)/10))
	}

	got, err := readPCM(&buf, n)
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.InDelta(t, 0.6, got[6], 1e-6)
}

func TestCachedProber(t *testing.T) {
	ctx := context.Background()
	info := Info{Streams: []Stream{{CodecType: "audio"}}}

	next := new(mockProber)
	next.On("Probe", ctx, "a.wav").Return(info, nil).Once()
	next.On("Probe", ctx, "b.wav").Return(Info{}, ErrFFprobeExecution).Once()

	cached := NewCachedProber(next)
	for range 3 {
		got, err := cached.Probe(ctx, "a.wav")
		require.NoError(t, err)
		assert.Equal(t, 1, got.AudioStreamCount())

		_, err = cached.Probe(ctx, "b.wav")
		assert.ErrorIs(t, err, ErrFFprobeExecution)
	}
	next.AssertExpectations(t)
}

func TestFFprobe_Probe(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	createTestTone(t, path)

	info, err := NewFFprobe("").Probe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.AudioStreamCount())
	assert.InDelta(t, 3.0, info.DurationSeconds(), 0.05)

	_, err = NewFFprobe("").Probe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, ErrFFprobeExecution)
}

func TestInfo_Helpers(t *testing.T) {
	info := Info{
		Streams: []Stream{{CodecType: "video"}, {CodecType: "audio"}, {CodecType: "AUDIO"}},
		Format:  Format{Duration: "12.5"},
	}
	assert.Equal(t, 2, info.AudioStreamCount())
	assert.InDelta(t, 12.5, info.DurationSeconds(), 1e-9)

	assert.Zero(t, Info{Format: Format{Duration: "N/A"}}.DurationSeconds())
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.wav", "-f", "f32le", "pipe:1"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "Error opening input file")

	var target *FFmpegError
	wrapped := fmt.Errorf("decode: %w", err)
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "exit status 1", target.Unwrap().Error())
}
