// Package server provides the HTTP server for the video transform API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/vidtransform/internal/job"
)

// RotateRequest is the HTTP request body for a rotate job.
type RotateRequest struct {
	// InputPath is the source video path. A file:// prefix is accepted.
	InputPath string `json:"input_path" validate:"required"`
	// Angle is the clockwise rotation in degrees.
	Angle int `json:"angle" validate:"required,oneof=-90 90 180 270"`
}

// CropRequest is the HTTP request body for a crop job.
type CropRequest struct {
	// InputPath is the source video path. A file:// prefix is accepted.
	InputPath string `json:"input_path" validate:"required"`
	// AspectRatio is the target crop ratio, e.g. "1:1" or "9:16".
	AspectRatio string `json:"aspect_ratio" validate:"required"`
	// Anchor positions the crop rectangle. Defaults to center.
	Anchor string `json:"anchor" validate:"omitempty,oneof=center top bottom left right top-left top-right bottom-left bottom-right"`
}

// CropRotateRequest is the HTTP request body for a combined crop and
// rotate job. The crop is applied first, then the rotation.
type CropRotateRequest struct {
	InputPath   string `json:"input_path" validate:"required"`
	AspectRatio string `json:"aspect_ratio" validate:"required"`
	Anchor      string `json:"anchor" validate:"omitempty,oneof=center top bottom left right top-left top-right bottom-left bottom-right"`
	Angle       int    `json:"angle" validate:"required,oneof=-90 90 180 270"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for job details.
type JobResponse struct {
	ID          string `json:"id"`
	Operation   string `json:"operation"`
	Status      string `json:"status"`
	InputPath   string `json:"input_path"`
	Angle       int    `json:"angle,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Anchor      string `json:"anchor,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
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
	// Engine names the active transformation engine.
	Engine string `json:"engine,omitempty"`
}

// jobResponseFrom maps a domain job to its HTTP representation.
func jobResponseFrom(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Operation:   string(j.Operation),
		Status:      string(j.Status),
		InputPath:   j.InputPath,
		Angle:       j.Angle,
		AspectRatio: j.AspectRatio,
		Anchor:      j.Anchor,
		OutputPath:  j.OutputPath,
		VideoURL:    j.VideoURL,
		ErrorCode:   j.ErrorCode,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !j.CompletedAt.IsZero() {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
