// Package pipeline implements the explicit decode/render/encode
// transformation engine. Two independent ffmpeg codec processes are bridged
// by an in-process render surface: every decoded frame crosses the surface,
// gets the job's crop and rotation applied by the blitter, and is fed to the
// encoder. The two codecs are never connected directly, because a straight
// passthrough could not apply a per-frame geometric transform. Audio is
// passthrough-copied in a final mux step once the encoded video track is
// complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/maauso/vidtransform/internal/engine"
)

// DefaultFrameTimeout bounds the wait for the next decoded frame.
const DefaultFrameTimeout = 2500 * time.Millisecond

// fallbackFrameRate is used when the prober could not determine the source
// frame rate.
const fallbackFrameRate = 30.0

// Engine is the explicit decode/render/encode transformation engine.
type Engine struct {
	ffmpegPath   string
	frameTimeout time.Duration
	logger       *slog.Logger
}

// New creates a pipeline engine. An empty ffmpegPath means "ffmpeg" from
// PATH; a non-positive frameTimeout falls back to DefaultFrameTimeout.
func New(ffmpegPath string, frameTimeout time.Duration, logger *slog.Logger) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if frameTimeout <= 0 {
		frameTimeout = DefaultFrameTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ffmpegPath: ffmpegPath, frameTimeout: frameTimeout, logger: logger}
}

// Name identifies the engine.
func (e *Engine) Name() string { return "pipeline" }

// Transform runs the plan: render the transformed video track into an
// intermediate file, then mux it with the passthrough audio into the final
// container. A single attempt is made; any failure is terminal for the job.
func (e *Engine) Transform(ctx context.Context, plan engine.Plan) error {
	blit, err := NewBlitter(plan)
	if err != nil {
		return fmt.Errorf("configure frame transform: %w", err)
	}

	intermediate := plan.OutputPath + ".video.mp4"
	// Best-effort cleanup of the intermediate track; never masks the job result.
	defer func() { _ = os.Remove(intermediate) }()

	frames, err := e.renderVideo(ctx, plan, blit, intermediate)
	if err != nil {
		return err
	}

	e.logger.Debug("video track rendered",
		slog.String("input", plan.InputPath),
		slog.Int("frames", frames),
	)

	return e.mux(ctx, plan, intermediate)
}

// decoderArgs produces the natural-orientation raw frame stream of the
// single video track. Autorotation is disabled: the blitter owns the
// orientation handling.
func decoderArgs(plan engine.Plan) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", plan.InputPath,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}

// encoderArgs consumes transformed raw frames on stdin and writes a
// video-only intermediate file.
func encoderArgs(plan engine.Plan, blit *Blitter, intermediate string) []string {
	outW, outH := blit.OutputSize()
	fps := plan.FrameRate
	if fps <= 0 {
		fps = fallbackFrameRate
	}
	return []string{
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", outW, outH),
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		intermediate,
	}
}

// muxerArgs writes the final container: the freshly encoded video track plus,
// when the source has one, its audio track copied sample-for-sample. The mux
// cannot start until both tracks are known, which is why it runs after the
// video render completes.
func muxerArgs(plan engine.Plan, intermediate string) []string {
	args := []string{
		"-v", "error",
		"-y",
		"-i", intermediate,
		"-i", plan.InputPath,
		"-map", "0:v:0",
	}
	if plan.HasAudio {
		args = append(args, "-map", "1:a:0")
	}
	args = append(args,
		"-c", "copy",
		"-movflags", "+faststart",
		plan.OutputPath,
	)
	return args
}

// renderVideo drives the decoder and encoder processes through the render
// surface and returns the number of frames processed. All resources are
// released in reverse acquisition order on every exit path.
func (e *Engine) renderVideo(ctx context.Context, plan engine.Plan, blit *Blitter, intermediate string) (int, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// #nosec G204 - ffmpegPath is set by the application, not user input
	dec := exec.CommandContext(runCtx, e.ffmpegPath, decoderArgs(plan)...)
	decOut, err := dec.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("configure decoder: %w", err)
	}
	var decStderr limitedBuffer
	dec.Stderr = &decStderr

	// #nosec G204
	enc := exec.CommandContext(runCtx, e.ffmpegPath, encoderArgs(plan, blit, intermediate)...)
	encIn, err := enc.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("configure encoder: %w", err)
	}
	var encStderr limitedBuffer
	enc.Stderr = &encStderr

	if err := dec.Start(); err != nil {
		return 0, fmt.Errorf("start decoder: %w", err)
	}
	if err := enc.Start(); err != nil {
		cancel()
		_ = dec.Wait()
		return 0, fmt.Errorf("start encoder: %w", err)
	}

	frameSize := plan.Geometry.NaturalWidth * plan.Geometry.NaturalHeight * bytesPerPixel
	surface := NewSurface(frameSize)

	// Feeder: decoder output → surface, one frame at a time. A clean EOF
	// closes the surface as end-of-stream.
	go func() {
		buf := make([]byte, frameSize)
		for {
			if _, err := io.ReadFull(decOut, buf); err != nil {
				if errors.Is(err, io.EOF) {
					surface.Close(nil)
				} else {
					surface.Close(fmt.Errorf("read decoded frame: %w", err))
				}
				return
			}
			if err := surface.Publish(buf); err != nil {
				return
			}
		}
	}()

	frames, renderErr := e.renderLoop(plan, blit, surface, encIn)

	// Teardown in reverse acquisition order: surface, encoder input,
	// encoder, decoder. Closing the encoder's stdin is the end-of-input
	// signal; the encoder drains and exits on its own when the render
	// succeeded, and is killed via the context when it did not.
	surface.Close(renderErr)
	_ = encIn.Close()
	if renderErr != nil {
		cancel()
	}
	encErr := enc.Wait()
	decErr := dec.Wait()

	if renderErr != nil {
		return frames, renderErr
	}
	if ctx.Err() != nil {
		return frames, fmt.Errorf("transform cancelled: %w", ctx.Err())
	}
	if decErr != nil {
		return frames, &engine.FFmpegError{Args: decoderArgs(plan), Stderr: decStderr.String(), Err: fmt.Errorf("decoder failed: %w", decErr)}
	}
	if encErr != nil {
		return frames, &engine.FFmpegError{Args: encoderArgs(plan, blit, intermediate), Stderr: encStderr.String(), Err: fmt.Errorf("encoder failed: %w", encErr)}
	}
	return frames, nil
}

// renderLoop waits for each decoded frame, applies the transform, stamps the
// frame's presentation time and submits it to the encoder. Frames are
// processed strictly in source order, one at a time.
func (e *Engine) renderLoop(plan engine.Plan, blit *Blitter, surface *Surface, encIn io.Writer) (int, error) {
	fps := plan.FrameRate
	if fps <= 0 {
		fps = fallbackFrameRate
	}
	frameDurationNs := int64(float64(time.Second) / fps)

	frames := 0
	lastPTS := int64(-1)
	for {
		frame, ok, err := surface.Await(e.frameTimeout)
		if err != nil {
			return frames, fmt.Errorf("await decoded frame %d: %w", frames, err)
		}
		if !ok {
			return frames, nil // decoder end-of-stream
		}

		out := blit.Draw(frame)
		surface.Release()

		pts := int64(frames) * frameDurationNs
		if pts <= lastPTS {
			return frames, fmt.Errorf("non-monotonic presentation timestamp at frame %d", frames)
		}
		lastPTS = pts

		if _, err := encIn.Write(out); err != nil {
			return frames, fmt.Errorf("submit frame %d to encoder: %w", frames, err)
		}
		frames++
	}
}

// mux assembles the final container from the encoded video track and the
// source's audio track (copied, not re-encoded). A source with no audio
// yields an output with no audio track, not a failure.
func (e *Engine) mux(ctx context.Context, plan engine.Plan, intermediate string) error {
	if err := engine.RunFFmpeg(ctx, e.ffmpegPath, muxerArgs(plan, intermediate)); err != nil {
		return fmt.Errorf("mux output: %w", err)
	}
	return nil
}

// limitedBuffer retains the first chunk of stderr so a runaway codec cannot
// grow the error report without bound.
type limitedBuffer struct {
	buf []byte
}

const stderrLimit = 16 * 1024

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remain := stderrLimit - len(b.buf); remain > 0 {
		if len(p) > remain {
			b.buf = append(b.buf, p[:remain]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}
