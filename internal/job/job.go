// Package job runs silence cuts as tracked jobs. It includes the Job entity
// with its state machine, the repository port with an in-memory adapter, and
// the CutService that drives a run from timeline file to published output.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted and has not started.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the cut is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the output timeline was published.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run stopped with an error. No output was written.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before it finished.
	StatusCancelled Status = "CANCELLED"
)

// Stage is the step a running job is in. Engine stages are reused as is.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageReading   Stage = "reading"
	StageSampling  Stage = Stage(cut.StageSampling)
	StageDetecting Stage = Stage(cut.StageDetecting)
	StagePlanning  Stage = Stage(cut.StagePlanning)
	StageRewriting Stage = Stage(cut.StageRewriting)
	StageWriting   Stage = "writing"
	StageDone      Stage = "done"
)

// stageProgress is the percentage reported on entering each stage.
var stageProgress = map[Stage]int{
	StageQueued:    0,
	StageReading:   5,
	StageSampling:  10,
	StageDetecting: 50,
	StagePlanning:  70,
	StageRewriting: 80,
	StageWriting:   90,
	StageDone:      100,
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Summary describes a finished cut. Durations are in ticks of the sequence
// timebase unless the field name says otherwise.
type Summary struct {
	Timebase         string
	Silences         int
	KeptIntervals    int
	OriginalDuration int64
	CutDuration      int64
	Removed          int64
	RemovedSeconds   float64
}

// Job represents one silence cut over a timeline file.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Stage is the step the job is in while running.
	Stage Stage
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains the error message if the job failed.
	Error string
	// ErrorCode is the stable code for Error, see ErrorCode.
	ErrorCode string
	// TimelinePath is the input timeline, empty when it was sent inline.
	TimelinePath string
	// OutputPath is where the cut timeline is written.
	OutputPath string
	// Settings are the engine settings of the run.
	Settings cut.Settings
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// OutputURL is the S3 URL if PushToS3 was true.
	OutputURL string
	// Summary is set once the job completes.
	Summary *Summary
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Stage:     StageQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.CompletedAt = j.UpdatedAt
		j.Stage = StageDone
		j.Progress = 100
	case StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
// Returns ErrInvalidTransition if the job is not in IN_QUEUE state.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error code and message.
// Returns ErrInvalidTransition if the transition is not allowed; the error
// is not recorded in that case.
func (j *Job) Fail(code, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.ErrorCode = code
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// EnterStage records the stage and its progress. Progress never goes back.
func (j *Job) EnterStage(stage Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	if p, ok := stageProgress[stage]; ok && p > j.Progress {
		j.Progress = p
	}
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = min(max(progress, 0), 100)
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output timeline path and optional S3 URL.
func (j *Job) SetOutput(outputPath, outputURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = outputPath
	j.OutputURL = outputURL
	j.UpdatedAt = time.Now()
}

// SetSummary records the outcome of the cut.
func (j *Job) SetSummary(s Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Summary = &s
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var summary *Summary
	if j.Summary != nil {
		s := *j.Summary
		summary = &s
	}

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Stage:        j.Stage,
		Progress:     j.Progress,
		Error:        j.Error,
		ErrorCode:    j.ErrorCode,
		TimelinePath: j.TimelinePath,
		OutputPath:   j.OutputPath,
		Settings:     j.Settings,
		PushToS3:     j.PushToS3,
		OutputURL:    j.OutputURL,
		Summary:      summary,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
