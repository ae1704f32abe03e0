package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/storage"
	"github.com/maauso/firstcut/internal/timeline"
	"github.com/maauso/firstcut/internal/xmeml"
)

// Engine runs the silence cut over a sequence.
type Engine interface {
	Run(ctx context.Context, seq *timeline.Sequence, settings cut.Settings, progress cut.ProgressFunc) (*cut.Result, error)
}

// CutInput contains the input parameters for one cut.
type CutInput struct {
	// TimelinePath is the interchange file to cut.
	TimelinePath string
	// Timeline is an inline interchange document, used when TimelinePath is empty.
	Timeline []byte
	// BaseDir resolves relative media paths of an inline timeline.
	BaseDir string
	// OutputPath is where the result is written. Defaults to <name>_cut.xml
	// next to TimelinePath, or <job id>_cut.xml in the output directory.
	OutputPath string
	// Settings configure the engine.
	Settings cut.Settings
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
}

// CutOutput contains the result of a cut.
type CutOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// OutputPath is the local path of the written timeline.
	OutputPath string
	// OutputURL is the S3 URL of the timeline (if pushed to S3).
	OutputURL string
	// Summary describes the cut.
	Summary *Summary
	// Result is the engine result, nil if the run failed.
	Result *cut.Result
}

// CutService orchestrates a cut: read the timeline, run the engine, encode
// the result and publish it through storage.
type CutService struct {
	repo      Repository
	engine    Engine
	store     storage.Storage
	logger    *slog.Logger
	outputDir string
	s3Prefix  string

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// ServiceOption configures a CutService.
type ServiceOption func(*CutService)

// WithOutputDir sets where inline timelines without an output path are written.
func WithOutputDir(dir string) ServiceOption {
	return func(s *CutService) {
		s.outputDir = dir
	}
}

// WithS3Prefix sets the key prefix of uploaded timelines.
func WithS3Prefix(prefix string) ServiceOption {
	return func(s *CutService) {
		s.s3Prefix = prefix
	}
}

// NewCutService creates a new CutService.
func NewCutService(repo Repository, engine Engine, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *CutService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CutService{
		repo:     repo,
		engine:   engine,
		store:    store,
		logger:   logger,
		s3Prefix: "cuts/",
		running:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultOutputPath returns <dir>/<name>_cut.xml for the timeline at path.
func DefaultOutputPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), base+"_cut.xml")
}

// CreateJob validates the input and persists a new IN_QUEUE job for it.
func (s *CutService) CreateJob(ctx context.Context, input CutInput) (*Job, error) {
	if input.TimelinePath == "" && len(input.Timeline) == 0 {
		return nil, fmt.Errorf("%w: no timeline given", ErrInvalidInput)
	}
	if err := input.Settings.Validate(); err != nil {
		return nil, err
	}

	job := New()
	job.TimelinePath = input.TimelinePath
	job.Settings = input.Settings
	job.PushToS3 = input.PushToS3
	switch {
	case input.OutputPath != "":
		job.OutputPath = input.OutputPath
	case input.TimelinePath != "":
		job.OutputPath = DefaultOutputPath(input.TimelinePath)
	default:
		job.OutputPath = filepath.Join(s.outputDir, job.ID+"_cut.xml")
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("timeline", job.TimelinePath),
		slog.String("output", job.OutputPath),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *CutService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns the jobs matching filter, newest first.
func (s *CutService) ListJobs(ctx context.Context, filter Filter) ([]*Job, error) {
	return s.repo.List(ctx, filter)
}

// Process creates a job for input and runs it to completion.
func (s *CutService) Process(ctx context.Context, input CutInput) (*CutOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob runs the job created for input. The job ends COMPLETED,
// FAILED, or CANCELLED when ctx is cancelled or Cancel is called.
func (s *CutService) ProcessExistingJob(ctx context.Context, jobID string, input CutInput) (*CutOutput, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Starting and registering happen under the lock so that Cancel sees
	// either a queued job or a running one.
	s.mu.Lock()
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := job.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.running[jobID] = cancel
	s.save(ctx, job)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
	}()

	out := &CutOutput{JobID: job.ID}
	res, url, err := s.run(ctx, job, input)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			_ = job.Cancel()
			s.logger.Info("job cancelled", slog.String("job_id", job.ID))
		} else {
			_ = job.Fail(ErrorCode(err), err.Error())
			s.logger.Error("job failed",
				slog.String("job_id", job.ID),
				slog.String("code", job.ErrorCode),
				slog.String("error", err.Error()),
			)
		}
		s.save(context.WithoutCancel(ctx), job)
		out.Status = job.GetStatus()
		return out, err
	}

	job.SetOutput(job.OutputPath, url)
	_ = job.Complete()
	s.save(ctx, job)

	final := job.Clone()
	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.String("output", final.OutputPath),
		slog.Int64("removed_ticks", final.Summary.Removed),
	)

	out.Status = final.Status
	out.OutputPath = final.OutputPath
	out.OutputURL = final.OutputURL
	out.Summary = final.Summary
	out.Result = res
	return out, nil
}

func (s *CutService) run(ctx context.Context, job *Job, input CutInput) (*cut.Result, string, error) {
	job.EnterStage(StageReading)
	s.save(ctx, job)

	doc, err := readTimeline(input)
	if err != nil {
		return nil, "", err
	}
	seq := doc.Sequence()

	res, err := s.engine.Run(ctx, seq, job.Settings, func(st cut.Stage) {
		job.EnterStage(Stage(st))
		s.save(ctx, job)
	})
	if err != nil {
		return nil, "", err
	}

	data, err := doc.Encode(res.Sequence)
	if err != nil {
		return nil, "", fmt.Errorf("encode timeline: %w", err)
	}

	job.EnterStage(StageWriting)
	s.save(ctx, job)

	if err := s.store.WriteFile(ctx, job.OutputPath, data); err != nil {
		return nil, "", fmt.Errorf("write output: %w", err)
	}

	var url string
	if job.PushToS3 {
		key := s.s3Prefix + job.ID + "/" + filepath.Base(job.OutputPath)
		url, err = s.store.UploadToS3(ctx, key, bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
	}

	job.SetSummary(Summary{
		Timebase:         seq.Timebase.String(),
		Silences:         len(res.Silences),
		KeptIntervals:    len(res.Plan.Intervals),
		OriginalDuration: seq.Duration,
		CutDuration:      res.Sequence.Duration,
		Removed:          res.Removed,
		RemovedSeconds:   seq.Timebase.Seconds(res.Removed),
	})
	return res, url, nil
}

func readTimeline(input CutInput) (*xmeml.Document, error) {
	if input.TimelinePath != "" {
		return xmeml.ReadFile(input.TimelinePath)
	}
	return xmeml.Decode(input.Timeline, input.BaseDir)
}

// Cancel stops a queued or running job.
func (s *CutService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, running := s.running[id]; running {
		stop()
		return nil
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := job.Cancel(); err != nil {
		return err
	}
	s.save(ctx, job)
	return nil
}

func (s *CutService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Warn("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
