package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/vidtransform/internal/job"
	"github.com/maauso/vidtransform/internal/transform"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.TransformService
	validator          *validator.Validate
	logger             *slog.Logger
	engineName         string
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, the create handlers only create the job and return
// immediately without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithEngineName sets the engine name reported by the health endpoint.
func WithEngineName(name string) HandlerOption {
	return func(h *Handlers) {
		h.engineName = name
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.TransformService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
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
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Engine: h.engineName})
}

// Rotate handles POST /transform/rotate requests.
func (h *Handlers) Rotate(w http.ResponseWriter, r *http.Request) {
	var req RotateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.service.Rotate(r.Context(), req.InputPath, req.Angle)
	h.respondCreated(w, r, created, err)
}

// Crop handles POST /transform/crop requests.
func (h *Handlers) Crop(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.service.Crop(r.Context(), req.InputPath, req.AspectRatio, req.Anchor)
	h.respondCreated(w, r, created, err)
}

// CropRotate handles POST /transform/crop-rotate requests.
func (h *Handlers) CropRotate(w http.ResponseWriter, r *http.Request) {
	var req CropRotateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.service.CropAndRotate(r.Context(), req.InputPath, req.AspectRatio, req.Anchor, req.Angle)
	h.respondCreated(w, r, created, err)
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// respondCreated finishes a create request: it maps service errors to the
// taxonomy, kicks off background processing, and writes the 202 response.
func (h *Handlers) respondCreated(w http.ResponseWriter, r *http.Request, created *job.Job, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Start processing in background with a detached context.
	// context.WithoutCancel prevents cancellation when the request ends.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if processErr := h.service.Process(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.String("operation", string(created.Operation)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// writeServiceError maps create-time service errors to HTTP responses.
// Validation failures are client errors; anything else is a 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	code := job.CodeFor(err)
	switch {
	case errors.Is(err, job.ErrInvalidInputPath),
		errors.Is(err, transform.ErrInvalidAngle),
		errors.Is(err, transform.ErrInvalidAspectRatio),
		errors.Is(err, transform.ErrInvalidAnchor):
		writeError(w, http.StatusBadRequest, err.Error(), code)
	default:
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, jobResponseFrom(found))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, jobResponseFrom(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles POST /jobs/{id}/cancel requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	cancelled, err := h.service.CancelJob(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		case errors.Is(err, job.ErrJobNotCancellable):
			writeError(w, http.StatusConflict, "job already finished", "JOB_NOT_CANCELLABLE")
		default:
			h.logger.Error("failed to cancel job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel job", "JOB_CANCEL_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, jobResponseFrom(cancelled))
}

// DeleteJob handles DELETE /jobs/{id} requests. The job record and its
// output file, if any, are removed.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
