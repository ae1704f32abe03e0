// Package server provides the HTTP surface for submitting and polling cut
// jobs. It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

import "time"

// SettingsRequest overrides engine settings for one cut. Omitted fields keep
// the server defaults.
type SettingsRequest struct {
	SilenceThreshold   *float64 `json:"silence_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	SilenceThresholdDB *float64 `json:"silence_threshold_db,omitempty" validate:"omitempty,lte=0"`
	MinSilence         *float64 `json:"min_silence,omitempty" validate:"omitempty,gte=0"`
	MinClip            *float64 `json:"min_clip,omitempty" validate:"omitempty,gte=0"`
	Padding            *float64 `json:"padding,omitempty" validate:"omitempty,gte=0"`
	FrameWindow        *float64 `json:"frame_window,omitempty" validate:"omitempty,gt=0"`
	SampleRate         *int     `json:"sample_rate,omitempty" validate:"omitempty,gte=1000,lte=192000"`
}

// CreateCutRequest is the HTTP request body for creating a new cut.
type CreateCutRequest struct {
	// TimelinePath is an interchange file readable by the server.
	TimelinePath string `json:"timeline_path" validate:"required_without=Timeline,excluded_with=Timeline"`
	// Timeline is an inline interchange document.
	Timeline string `json:"timeline" validate:"required_without=TimelinePath"`
	// BaseDir resolves relative media paths of an inline timeline.
	BaseDir string `json:"base_dir" validate:"omitempty,excluded_with=TimelinePath"`
	// OutputPath is where the cut timeline is written on the server.
	OutputPath string `json:"output_path"`
	// Settings override the engine defaults.
	Settings *SettingsRequest `json:"settings"`
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateCutResponse is the HTTP response after creating a cut.
type CreateCutResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// SummaryResponse describes a finished cut.
type SummaryResponse struct {
	Timebase         string  `json:"timebase"`
	Silences         int     `json:"silences"`
	KeptIntervals    int     `json:"kept_intervals"`
	OriginalDuration int64   `json:"original_duration"`
	CutDuration      int64   `json:"cut_duration"`
	Removed          int64   `json:"removed"`
	RemovedSeconds   float64 `json:"removed_seconds"`
}

// CutResponse is the HTTP response for getting job details.
type CutResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Stage is the step a running job is in.
	Stage string `json:"stage"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// ErrorCode is the stable code of Error.
	ErrorCode string `json:"error_code,omitempty"`
	// TimelinePath is the input timeline, if one was named.
	TimelinePath string `json:"timeline_path,omitempty"`
	// OutputPath is where the cut timeline is written.
	OutputPath string `json:"output_path"`
	// OutputURL is the S3 URL of the cut timeline (if push_to_s3=true and completed).
	OutputURL string `json:"output_url,omitempty"`
	// Summary is set once the job completes.
	Summary *SummaryResponse `json:"summary,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListCutsResponse is the HTTP response for listing jobs.
type ListCutsResponse struct {
	Cuts []CutResponse `json:"cuts"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
