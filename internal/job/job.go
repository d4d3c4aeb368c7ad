// Package job provides the Job aggregate for video transformation work.
// It includes the Job entity with its status state machine, repository ports
// for persistence, and the TransformService use case that drives a job from
// request to terminal state.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/vidtransform/internal/job/id"
)

// Operation names the requested transformation kind.
type Operation string

const (
	// OperationRotate rotates the video by a quarter or half turn.
	OperationRotate Operation = "rotate"
	// OperationCrop crops the video to an aspect ratio at an anchor.
	OperationCrop Operation = "crop"
	// OperationCropRotate crops first, then rotates the cropped result.
	OperationCropRotate Operation = "crop-rotate"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is created but not yet processing.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates the job finished and the output file exists.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before completion.
	// Cancellation is a distinct terminal state, not a failure.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one in-flight transformation. Once a terminal status is
// observed the caller owns the lifecycle of the output file.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// InputPath is the normalized source file path.
	InputPath string
	// Operation is the requested transformation kind.
	Operation Operation
	// Angle is the requested rotation in degrees as supplied by the caller.
	// Meaningful for rotate and crop-rotate operations.
	Angle int
	// AspectRatio is the requested crop ratio string ("W:H").
	AspectRatio string
	// Anchor is the requested crop anchor name.
	Anchor string
	// Status is the current job state.
	Status Status
	// OutputPath is the transformed file path once the job succeeds.
	OutputPath string
	// VideoURL is the S3 URL when upload is enabled.
	VideoURL string
	// ErrorCode is the stable error taxonomy code when the job failed.
	ErrorCode string
	// Error is the human-readable failure detail.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New() *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID and initial PENDING
// status. Useful for testing or when the ID is generated externally.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Succeed records the output location and transitions the job to SUCCEEDED.
func (j *Job) Succeed(outputPath, videoURL string) error {
	j.mu.Lock()
	j.OutputPath = outputPath
	j.VideoURL = videoURL
	j.mu.Unlock()
	return j.TransitionTo(StatusSucceeded)
}

// Fail records the taxonomy code and detail and transitions the job to FAILED.
func (j *Job) Fail(code, detail string) error {
	j.mu.Lock()
	j.ErrorCode = code
	j.Error = detail
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusSucceeded ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		InputPath:   j.InputPath,
		Operation:   j.Operation,
		Angle:       j.Angle,
		AspectRatio: j.AspectRatio,
		Anchor:      j.Anchor,
		Status:      j.Status,
		OutputPath:  j.OutputPath,
		VideoURL:    j.VideoURL,
		ErrorCode:   j.ErrorCode,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
