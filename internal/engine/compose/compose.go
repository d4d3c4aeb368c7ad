// Package compose implements the composition-based transformation engine.
// It assembles a declarative filtergraph for the whole job (one crop, one
// rotation, applied to the full track duration) and exports it in a single
// ffmpeg pass, with the audio track copied through untouched.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"

	"github.com/maauso/vidtransform/internal/engine"
)

// DefaultExportFPS is the frame-rate hint attached to exports when none is
// configured. The output is normalized to this rate regardless of the
// source's actual rate.
const DefaultExportFPS = 30

// Engine is the composition-based transformation engine.
type Engine struct {
	ffmpegPath string
	exportFPS  int
	logger     *slog.Logger
}

// New creates a composition engine. An empty ffmpegPath means "ffmpeg" from
// PATH; a non-positive exportFPS falls back to DefaultExportFPS.
func New(ffmpegPath string, exportFPS int, logger *slog.Logger) *Engine {
	if exportFPS <= 0 {
		exportFPS = DefaultExportFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ffmpegPath: ffmpegPath, exportFPS: exportFPS, logger: logger}
}

// Name identifies the engine.
func (e *Engine) Name() string { return "compose" }

// Transform builds and runs the export for the plan. A single attempt is
// made; any failure is terminal for the job.
func (e *Engine) Transform(ctx context.Context, plan engine.Plan) error {
	args := BuildArgs(plan, e.exportFPS)

	e.logger.Debug("running composition export",
		slog.String("input", plan.InputPath),
		slog.String("output", plan.OutputPath),
		slog.String("op", plan.Request.Op.String()),
		slog.Int("render_width", plan.Output.RenderWidth),
		slog.Int("render_height", plan.Output.RenderHeight),
	)

	return engine.RunFFmpeg(ctx, e.ffmpegPath, args)
}

// BuildArgs compiles the plan into the ffmpeg argument list for one export.
// Exposed for tests: the argument list is the engine's observable plan.
func BuildArgs(plan engine.Plan, exportFPS int) []string {
	// Decode in natural orientation. Autorotate would hand over
	// display-oriented frames while the plan's crop rectangle and render
	// size are expressed in natural space; the embedded orientation is
	// applied explicitly below instead, mirroring the raw-frame engine.
	input := ffmpeg_go.Input(plan.InputPath, ffmpeg_go.KwArgs{"noautorotate": ""})
	video := input.Get("v")

	rotation := int(plan.Output.Angle)
	if plan.Output.Crop != nil {
		rect := *plan.Output.Crop
		video = video.Filter("crop", ffmpeg_go.Args{fmt.Sprintf("%d:%d:%d:%d",
			round(rect.Width), round(rect.Height), round(rect.X), round(rect.Y))})
		// Crop output is display-oriented, so the embedded orientation folds
		// into the rotation. SourceRotation is counter-clockwise (the probed
		// display-matrix convention); the transpose directions are clockwise.
		rotation = (rotation - plan.SourceRotation + 360) % 360
	}

	switch rotation {
	case 90:
		video = video.Filter("transpose", ffmpeg_go.Args{"1"})
	case 270:
		video = video.Filter("transpose", ffmpeg_go.Args{"2"})
	case 180:
		video = video.Filter("transpose", ffmpeg_go.Args{"1"}).Filter("transpose", ffmpeg_go.Args{"1"})
	}

	// Pin the output to the calculated render size, nudged to even
	// dimensions for the 4:2:0 encoder.
	video = video.Filter("scale", ffmpeg_go.Args{fmt.Sprintf("%d:%d",
		evenDimension(plan.Output.RenderWidth), evenDimension(plan.Output.RenderHeight))})
	video = video.Filter("setsar", ffmpeg_go.Args{"1"})

	kwargs := ffmpeg_go.KwArgs{
		"c:v":          "libx264",
		"preset":       "fast",
		"crf":          "23",
		"pix_fmt":      "yuv420p",
		"r":            fmt.Sprintf("%d", exportFPS),
		"metadata:s:v": "rotate=0",
	}

	streams := []*ffmpeg_go.Stream{video}
	if plan.HasAudio {
		streams = append(streams, input.Get("a"))
		kwargs["c:a"] = "copy"
	}

	return ffmpeg_go.Output(streams, plan.OutputPath, kwargs).OverWriteOutput().GetArgs()
}

func round(v float64) int {
	return int(math.Round(v))
}

// evenDimension rounds a pixel dimension down to the nearest even value, as
// required by yuv420p subsampling.
func evenDimension(v int) int {
	if v < 2 {
		return 2
	}
	return v &^ 1
}
