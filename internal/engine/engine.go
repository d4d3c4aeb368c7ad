// Package engine defines the transformation engine contract shared by the
// composition and pipeline implementations. The engine to use is selected
// once at startup by configuration; there is no runtime branching between
// the two.
package engine

import (
	"context"

	"github.com/maauso/vidtransform/internal/transform"
)

// Plan is everything an engine needs to run one transformation job: the
// source and destination paths, the probed frame geometry, the requested
// operation, and the calculator's output.
type Plan struct {
	// InputPath is the source video file.
	InputPath string
	// OutputPath is where the transformed file is written.
	OutputPath string
	// Geometry is the probed frame geometry of the source video track.
	Geometry transform.FrameGeometry
	// Request is the validated transformation request.
	Request transform.Request
	// Output is the calculated transform, render size and crop rectangle.
	Output transform.Output
	// SourceRotation is the source track's embedded orientation in degrees,
	// normalized to 0, 90, 180 or 270.
	SourceRotation int
	// HasAudio reports whether the source carries an audio track to pass
	// through.
	HasAudio bool
	// FrameRate is the source video frame rate, used for timestamp
	// synthesis. Zero means unknown.
	FrameRate float64
}

// Engine renders a transformation plan into an output file. Implementations
// run a single attempt per call: failures are terminal for the job and the
// caller decides whether to re-invoke with a fresh job.
type Engine interface {
	// Name identifies the engine implementation for logging.
	Name() string
	// Transform runs the plan to completion. Cancelling the context aborts
	// the underlying work and surfaces as the context's error.
	Transform(ctx context.Context, plan Plan) error
}
