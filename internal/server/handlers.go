package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/job"
)

// maxBodyBytes bounds request bodies, inline timelines included.
const maxBodyBytes = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.CutService
	defaults           cut.Settings
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	s3Enabled          bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateCut only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithS3 tells the handlers whether uploads can be requested.
func WithS3(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.s3Enabled = enabled
	}
}

// NewHandlers creates a new Handlers instance. defaults are the engine
// settings requests start from.
func NewHandlers(service *job.CutService, defaults cut.Settings, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		defaults:           defaults,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateCut handles POST /cuts requests.
func (h *Handlers) CreateCut(w http.ResponseWriter, r *http.Request) {
	var req CreateCutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if req.PushToS3 && !h.s3Enabled {
		writeError(w, http.StatusBadRequest, "S3 upload requested but S3 is not configured", job.CodeS3NotConfigured)
		return
	}

	input := job.CutInput{
		TimelinePath: req.TimelinePath,
		BaseDir:      req.BaseDir,
		OutputPath:   req.OutputPath,
		Settings:     h.settingsFor(req.Settings),
		PushToS3:     req.PushToS3,
	}
	if req.Timeline != "" {
		input.Timeline = []byte(req.Timeline)
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		if errors.Is(err, cut.ErrInvalidSettings) || errors.Is(err, job.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error(), job.ErrorCode(err))
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.CutInput) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID, inp)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("cut created",
		slog.String("job_id", createdJob.ID),
		slog.String("output", createdJob.OutputPath),
	)

	writeJSON(w, http.StatusAccepted, CreateCutResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// settingsFor applies request overrides to the defaults. A dB threshold wins
// over a linear one.
func (h *Handlers) settingsFor(req *SettingsRequest) cut.Settings {
	s := h.defaults
	if req == nil {
		return s
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.SilenceThreshold, req.SilenceThreshold)
	set(&s.MinSilence, req.MinSilence)
	set(&s.MinClip, req.MinClip)
	set(&s.Padding, req.Padding)
	set(&s.FrameWindow, req.FrameWindow)
	if req.SampleRate != nil {
		s.SampleRate = *req.SampleRate
	}
	if req.SilenceThresholdDB != nil {
		s = s.WithThresholdDB(*req.SilenceThresholdDB)
	}
	return s
}

// ListCuts handles GET /cuts requests.
func (h *Handlers) ListCuts(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUERY")
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListCutsResponse{Cuts: make([]CutResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Cuts = append(resp.Cuts, toCutResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// listFilter reads the optional status and limit query parameters.
func listFilter(r *http.Request) (job.Filter, error) {
	var filter job.Filter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := job.Status(strings.ToUpper(v))
		if !job.ValidStatus(status) {
			return filter, fmt.Errorf("unknown status %q", v)
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("limit must be a positive integer, got %q", v)
		}
		filter.Limit = n
	}
	return filter, nil
}

// GetCut handles GET /cuts/{id} requests.
func (h *Handlers) GetCut(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCutResponse(foundJob))
}

// GetCutTimeline handles GET /cuts/{id}/timeline requests. It returns the
// written timeline of a completed job.
func (h *Handlers) GetCutTimeline(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}
	if foundJob.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, "job is "+string(foundJob.Status), "JOB_NOT_COMPLETED")
		return
	}

	data, err := os.ReadFile(foundJob.OutputPath)
	if err != nil {
		h.logger.Error("failed to read output timeline",
			slog.String("job_id", foundJob.ID),
			slog.String("path", foundJob.OutputPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGone, "output timeline is no longer available", "OUTPUT_MISSING")
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CancelCut handles DELETE /cuts/{id} requests.
func (h *Handlers) CancelCut(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "job already finished", "JOB_FINISHED")
		return
	default:
		h.logger.Error("failed to cancel job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel job", "JOB_CANCEL_FAILED")
		return
	}

	h.logger.Info("cut cancellation requested", slog.String("job_id", jobID))
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

func toCutResponse(j *job.Job) CutResponse {
	resp := CutResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Stage:        string(j.Stage),
		Progress:     j.Progress,
		Error:        j.Error,
		ErrorCode:    j.ErrorCode,
		TimelinePath: j.TimelinePath,
		OutputPath:   j.OutputPath,
		OutputURL:    j.OutputURL,
		CreatedAt:    j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if s := j.Summary; s != nil {
		resp.Summary = &SummaryResponse{
			Timebase:         s.Timebase,
			Silences:         s.Silences,
			KeptIntervals:    s.KeptIntervals,
			OriginalDuration: s.OriginalDuration,
			CutDuration:      s.CutDuration,
			Removed:          s.Removed,
			RemovedSeconds:   s.RemovedSeconds,
		}
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
