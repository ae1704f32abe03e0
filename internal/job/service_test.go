package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/firstcut/internal/audio"
	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/storage"
	"github.com/maauso/firstcut/internal/timeline"
	"github.com/maauso/firstcut/internal/xmeml"
)

// interviewXML is 30 s at 30 fps with one linked video and audio clip.
const interviewXML = `<?xml version="1.0" encoding="UTF-8"?>
<xmeml version="4">
  <sequence id="sequence-1">
    <name>Interview</name>
    <duration>900</duration>
    <rate><timebase>30</timebase><ntsc>FALSE</ntsc></rate>
    <media>
      <video>
        <track>
          <clipitem id="v1">
            <name>interview.mov</name>
            <start>0</start><end>900</end><in>0</in><out>900</out>
            <file id="file-1">
              <name>interview.mov</name>
              <pathurl>file://localhost/media/interview.mov</pathurl>
            </file>
            <link><linkclipref>v1</linkclipref><mediatype>video</mediatype><trackindex>1</trackindex><clipindex>1</clipindex></link>
            <link><linkclipref>a1</linkclipref><mediatype>audio</mediatype><trackindex>1</trackindex><clipindex>1</clipindex></link>
          </clipitem>
        </track>
      </video>
      <audio>
        <track>
          <clipitem id="a1">
            <name>interview.mov</name>
            <start>0</start><end>900</end><in>0</in><out>900</out>
            <file id="file-1"/>
            <link><linkclipref>v1</linkclipref><mediatype>video</mediatype><trackindex>1</trackindex><clipindex>1</clipindex></link>
            <link><linkclipref>a1</linkclipref><mediatype>audio</mediatype><trackindex>1</trackindex><clipindex>1</clipindex></link>
          </clipitem>
        </track>
      </audio>
    </media>
  </sequence>
</xmeml>
`

type mockDecoder struct {
	mock.Mock
}

func (m *mockDecoder) Decode(ctx context.Context, req audio.DecodeRequest) ([]float32, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockStorage implements storage.Storage for testing.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	args := m.Called(ctx, path, data)
	return args.Error(0)
}

func (m *mockStorage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// engineFunc adapts a function to the Engine interface.
type engineFunc func(ctx context.Context, seq *timeline.Sequence, settings cut.Settings, progress cut.ProgressFunc) (*cut.Result, error)

func (f engineFunc) Run(ctx context.Context, seq *timeline.Sequence, settings cut.Settings, progress cut.ProgressFunc) (*cut.Result, error) {
	return f(ctx, seq, settings, progress)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// interviewSpeech is 30 s of speech at 16 kHz with a pause from 10 s to 12.5 s.
func interviewSpeech() []float32 {
	const rate = cut.DefaultSampleRate
	out := make([]float32, 30*rate)
	for i := range out {
		if i < 10*rate || i >= 25*rate/2 {
			out[i] = 0.5
		}
	}
	return out
}

func newInterviewEngine(t *testing.T) *cut.Engine {
	t.Helper()
	dec := new(mockDecoder)
	dec.On("Decode", mock.Anything, audio.DecodeRequest{
		Path: "/media/interview.mov", Start: 0, Duration: 30, SampleRate: cut.DefaultSampleRate,
	}).Return(interviewSpeech(), nil)
	t.Cleanup(func() { dec.AssertExpectations(t) })
	return cut.NewEngine(dec, cut.WithLogger(testLogger()))
}

func newLocalStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func inlineInput(outputPath string) CutInput {
	return CutInput{
		Timeline:   []byte(interviewXML),
		OutputPath: outputPath,
		Settings:   cut.DefaultSettings(),
	}
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/edits", "interview_cut.xml"), DefaultOutputPath("/edits/interview.xml"))
	assert.Equal(t, filepath.Join("/edits", "rough.v2_cut.xml"), DefaultOutputPath("/edits/rough.v2.xml"))
	assert.Equal(t, "export_cut.xml", DefaultOutputPath("export"))
}

func TestCutService_CreateJob(t *testing.T) {
	ctx := context.Background()
	svc := NewCutService(NewMemoryRepository(), nil, nil, testLogger(), WithOutputDir("/srv/out"))

	t.Run("output next to the timeline", func(t *testing.T) {
		job, err := svc.CreateJob(ctx, CutInput{TimelinePath: "/edits/interview.xml", Settings: cut.DefaultSettings()})
		require.NoError(t, err)
		assert.Equal(t, StatusInQueue, job.Status)
		assert.Equal(t, filepath.Join("/edits", "interview_cut.xml"), job.OutputPath)

		saved, err := svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.OutputPath, saved.OutputPath)
	})

	t.Run("inline timeline goes to the output directory", func(t *testing.T) {
		job, err := svc.CreateJob(ctx, inlineInput(""))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/srv/out", job.ID+"_cut.xml"), job.OutputPath)
	})

	t.Run("explicit output path", func(t *testing.T) {
		job, err := svc.CreateJob(ctx, inlineInput("/tmp/x.xml"))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x.xml", job.OutputPath)
	})

	t.Run("no timeline", func(t *testing.T) {
		_, err := svc.CreateJob(ctx, CutInput{Settings: cut.DefaultSettings()})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("invalid settings", func(t *testing.T) {
		in := inlineInput("")
		in.Settings.Padding = -1
		_, err := svc.CreateJob(ctx, in)
		assert.ErrorIs(t, err, cut.ErrInvalidSettings)
	})
}

func TestCutService_Process(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewCutService(repo, newInterviewEngine(t), newLocalStore(t), testLogger())

	outPath := filepath.Join(t.TempDir(), "interview_cut.xml")
	out, err := svc.Process(ctx, inlineInput(outPath))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, outPath, out.OutputPath)
	assert.Empty(t, out.OutputURL)
	require.NotNil(t, out.Summary)
	assert.Equal(t, Summary{
		Timebase:         "30 fps",
		Silences:         1,
		KeptIntervals:    2,
		OriginalDuration: 900,
		CutDuration:      829,
		Removed:          71,
		RemovedSeconds:   71.0 / 30,
	}, *out.Summary)

	saved, err := repo.FindByID(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, saved.Status)
	assert.Equal(t, 100, saved.Progress)
	assert.Equal(t, StageDone, saved.Stage)

	doc, err := xmeml.ReadFile(outPath)
	require.NoError(t, err)
	seq := doc.Sequence()
	assert.Equal(t, int64(829), seq.Duration)
	for _, track := range seq.Tracks() {
		require.Len(t, track.Clips, 2)
		assert.Equal(t, int64(302), track.Clips[1].TimelineStart)
		assert.Equal(t, int64(373), track.Clips[1].SourceIn)
	}
}

func TestCutService_Process_TimelineFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "interview.xml")
	require.NoError(t, os.WriteFile(in, []byte(interviewXML), 0600))

	svc := NewCutService(NewMemoryRepository(), newInterviewEngine(t), newLocalStore(t), testLogger())
	out, err := svc.Process(context.Background(), CutInput{TimelinePath: in, Settings: cut.DefaultSettings()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "interview_cut.xml"), out.OutputPath)
	assert.FileExists(t, out.OutputPath)
}

func TestCutService_Process_PushToS3(t *testing.T) {
	store := new(mockStorage)
	svc := NewCutService(NewMemoryRepository(), newInterviewEngine(t), store, testLogger(), WithS3Prefix("edits/"))

	in := inlineInput("/srv/out/interview_cut.xml")
	in.PushToS3 = true
	job, err := svc.CreateJob(context.Background(), in)
	require.NoError(t, err)

	store.On("WriteFile", mock.Anything, "/srv/out/interview_cut.xml", mock.AnythingOfType("[]uint8")).Return(nil)
	store.On("UploadToS3", mock.Anything, "edits/"+job.ID+"/interview_cut.xml", mock.Anything).
		Return("https://bucket.s3.eu-west-1.amazonaws.com/edits/"+job.ID+"/interview_cut.xml", nil)

	out, err := svc.ProcessExistingJob(context.Background(), job.ID, in)
	require.NoError(t, err)
	store.AssertExpectations(t)

	assert.Equal(t, "https://bucket.s3.eu-west-1.amazonaws.com/edits/"+job.ID+"/interview_cut.xml", out.OutputURL)
}

func TestCutService_Process_Failures(t *testing.T) {
	tests := []struct {
		name   string
		input  CutInput
		engine Engine
		code   string
		target error
	}{
		{
			name:  "empty cut plan",
			input: inlineInput("/srv/out/x.xml"),
			engine: engineFunc(func(context.Context, *timeline.Sequence, cut.Settings, cut.ProgressFunc) (*cut.Result, error) {
				return nil, cut.ErrEmptyCutPlan
			}),
			code:   CodeEmptyCutPlan,
			target: cut.ErrEmptyCutPlan,
		},
		{
			name:  "media unavailable",
			input: inlineInput("/srv/out/x.xml"),
			engine: engineFunc(func(context.Context, *timeline.Sequence, cut.Settings, cut.ProgressFunc) (*cut.Result, error) {
				return nil, &audio.MediaError{ClipID: "a1", Path: "/media/interview.mov", Err: os.ErrNotExist}
			}),
			code:   CodeMediaUnavailable,
			target: audio.ErrMediaUnavailable,
		},
		{
			name:   "malformed timeline",
			input:  CutInput{Timeline: []byte("<xmeml><sequence>"), OutputPath: "/srv/out/x.xml", Settings: cut.DefaultSettings()},
			code:   CodeMalformedTimeline,
			target: timeline.ErrMalformedTimeline,
		},
		{
			name:   "missing timeline file",
			input:  CutInput{TimelinePath: "/nonexistent/interview.xml", Settings: cut.DefaultSettings()},
			code:   CodeTimelineUnreadable,
			target: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStorage)
			repo := NewMemoryRepository()
			svc := NewCutService(repo, tt.engine, store, testLogger())

			out, err := svc.Process(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, StatusFailed, out.Status)
			store.AssertNotCalled(t, "WriteFile", mock.Anything, mock.Anything, mock.Anything)

			saved, err := repo.FindByID(context.Background(), out.JobID)
			require.NoError(t, err)
			assert.Equal(t, tt.code, saved.ErrorCode)
			assert.NotEmpty(t, saved.Error)
		})
	}
}

func TestCutService_Process_WriteFailure(t *testing.T) {
	store := new(mockStorage)
	store.On("WriteFile", mock.Anything, "/srv/out/x.xml", mock.Anything).
		Return(fmt.Errorf("%w: /srv/out/x.xml", storage.ErrLocked))

	repo := NewMemoryRepository()
	svc := NewCutService(repo, newInterviewEngine(t), store, testLogger())

	out, err := svc.Process(context.Background(), inlineInput("/srv/out/x.xml"))
	assert.ErrorIs(t, err, storage.ErrLocked)

	saved, _ := repo.FindByID(context.Background(), out.JobID)
	assert.Equal(t, CodeOutputLocked, saved.ErrorCode)
}

func TestCutService_Cancel(t *testing.T) {
	t.Run("running job", func(t *testing.T) {
		entered := make(chan struct{})
		engine := engineFunc(func(ctx context.Context, _ *timeline.Sequence, _ cut.Settings, progress cut.ProgressFunc) (*cut.Result, error) {
			progress(cut.StageSampling)
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		repo := NewMemoryRepository()
		svc := NewCutService(repo, engine, new(mockStorage), testLogger())

		job, err := svc.CreateJob(context.Background(), inlineInput("/srv/out/x.xml"))
		require.NoError(t, err)

		done := make(chan *CutOutput)
		go func() {
			out, _ := svc.ProcessExistingJob(context.Background(), job.ID, inlineInput("/srv/out/x.xml"))
			done <- out
		}()

		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("engine never started")
		}
		require.NoError(t, svc.Cancel(context.Background(), job.ID))

		select {
		case out := <-done:
			assert.Equal(t, StatusCancelled, out.Status)
		case <-time.After(5 * time.Second):
			t.Fatal("job did not stop")
		}

		saved, err := repo.FindByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, saved.Status)
		assert.Empty(t, saved.ErrorCode)
	})

	t.Run("queued job never starts", func(t *testing.T) {
		svc := NewCutService(NewMemoryRepository(), nil, new(mockStorage), testLogger())
		job, err := svc.CreateJob(context.Background(), inlineInput("/srv/out/x.xml"))
		require.NoError(t, err)

		require.NoError(t, svc.Cancel(context.Background(), job.ID))

		_, err = svc.ProcessExistingJob(context.Background(), job.ID, inlineInput("/srv/out/x.xml"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown job", func(t *testing.T) {
		svc := NewCutService(NewMemoryRepository(), nil, nil, testLogger())
		assert.ErrorIs(t, svc.Cancel(context.Background(), "cut-missing"), ErrJobNotFound)
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{fmt.Errorf("%w: no <sequence> element", timeline.ErrMalformedTimeline), CodeMalformedTimeline},
		{&audio.MediaError{ClipID: "a1", Path: "/x.wav", Err: os.ErrNotExist}, CodeMediaUnavailable},
		{fmt.Errorf("wrap: %w", timeline.ErrUnsupportedTrackLayout), CodeUnsupportedTrackLayout},
		{cut.ErrEmptyCutPlan, CodeEmptyCutPlan},
		{fmt.Errorf("%w: padding=-1", cut.ErrInvalidSettings), CodeInvalidSettings},
		{storage.ErrS3NotConfigured, CodeS3NotConfigured},
		{fmt.Errorf("read timeline: %w", os.ErrNotExist), CodeTimelineUnreadable},
		{fmt.Errorf("context cancelled: %w", context.Canceled), CodeCancelled},
		{errors.New("disk on fire"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err), "%v", tt.err)
	}
}
