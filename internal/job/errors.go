package job

import "errors"

// Sentinel errors for request validation and processing failures.
var (
	// ErrInvalidInputPath indicates the input path is empty, malformed,
	// or does not point to a readable file.
	ErrInvalidInputPath = errors.New("invalid input path")
	// ErrJobNotCancellable indicates a cancel request arrived after the
	// job already reached a terminal state.
	ErrJobNotCancellable = errors.New("job is not cancellable")
)

// Stable error codes surfaced on failed jobs and API error responses.
// Codes are part of the public contract; messages are not.
const (
	CodeInvalidInputPath   = "INVALID_INPUT_PATH"
	CodeInvalidAngle       = "INVALID_ANGLE"
	CodeInvalidAspectRatio = "INVALID_ASPECT_RATIO"
	CodeInvalidAnchor      = "INVALID_ANCHOR"
	CodeNoVideoTrack       = "NO_VIDEO_TRACK"
	CodeSetupFailed        = "SETUP_FAILED"
	CodeExportFailed       = "EXPORT_FAILED"
	CodeCancelled          = "CANCELLED"
	CodeProcessingFailed   = "PROCESSING_FAILED"
)
