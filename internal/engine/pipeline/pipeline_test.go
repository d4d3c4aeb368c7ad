package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maauso/vidtransform/internal/engine"
	"github.com/maauso/vidtransform/internal/transform"
)

func pipelinePlan(t *testing.T, req transform.Request, hasAudio bool) engine.Plan {
	t.Helper()
	geom := transform.FrameGeometry{NaturalWidth: 1920, NaturalHeight: 1080, Preexisting: transform.Identity()}
	out, err := transform.Calculate(geom, req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	return engine.Plan{
		InputPath:  "/tmp/in.mp4",
		OutputPath: "/tmp/out.mp4",
		Geometry:   geom,
		Request:    req,
		Output:     out,
		HasAudio:   hasAudio,
		FrameRate:  30,
	}
}

func TestDecoderArgs(t *testing.T) {
	req, _ := transform.NewRotate(90)
	args := strings.Join(decoderArgs(pipelinePlan(t, req, true)), " ")

	for _, want := range []string{"-noautorotate", "-map 0:v:0", "-f rawvideo", "-pix_fmt rgba", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("decoder args missing %q: %s", want, args)
		}
	}
}

func TestEncoderArgs(t *testing.T) {
	req, _ := transform.NewRotate(90)
	plan := pipelinePlan(t, req, false)
	blit, err := NewBlitter(plan)
	if err != nil {
		t.Fatalf("NewBlitter: %v", err)
	}
	args := strings.Join(encoderArgs(plan, blit, "/tmp/out.mp4.video.mp4"), " ")

	// Quarter turn of 1920x1080 encodes at 1080x1920.
	for _, want := range []string{"-video_size 1080x1920", "-framerate 30", "-i pipe:0", "-c:v libx264", "-pix_fmt yuv420p"} {
		if !strings.Contains(args, want) {
			t.Errorf("encoder args missing %q: %s", want, args)
		}
	}
}

func TestEncoderArgsFrameRateFallback(t *testing.T) {
	req, _ := transform.NewRotate(180)
	plan := pipelinePlan(t, req, false)
	plan.FrameRate = 0
	blit, err := NewBlitter(plan)
	if err != nil {
		t.Fatalf("NewBlitter: %v", err)
	}
	args := strings.Join(encoderArgs(plan, blit, "x.mp4"), " ")
	if !strings.Contains(args, "-framerate 30") {
		t.Errorf("expected fallback frame rate in args: %s", args)
	}
}

func TestMuxerArgsWithAudio(t *testing.T) {
	req, _ := transform.NewRotate(90)
	plan := pipelinePlan(t, req, true)
	args := strings.Join(muxerArgs(plan, "/tmp/out.mp4.video.mp4"), " ")

	for _, want := range []string{"-map 0:v:0", "-map 1:a:0", "-c copy", "/tmp/out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("muxer args missing %q: %s", want, args)
		}
	}
}

func TestMuxerArgsWithoutAudio(t *testing.T) {
	req, _ := transform.NewRotate(90)
	plan := pipelinePlan(t, req, false)
	args := strings.Join(muxerArgs(plan, "/tmp/out.mp4.video.mp4"), " ")

	if strings.Contains(args, "1:a:0") {
		t.Errorf("muxer args must not map audio for an audio-less source: %s", args)
	}
}

func TestRenderLoopProcessesFramesInOrder(t *testing.T) {
	geom := transform.FrameGeometry{NaturalWidth: 4, NaturalHeight: 2, Preexisting: transform.Identity()}
	req, _ := transform.NewRotate(180)
	out, err := transform.Calculate(geom, req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	plan := engine.Plan{Geometry: geom, Request: req, Output: out, FrameRate: 30}

	blit, err := NewBlitter(plan)
	if err != nil {
		t.Fatalf("NewBlitter: %v", err)
	}

	frameSize := 4 * 2 * bytesPerPixel
	surface := NewSurface(frameSize)

	const frameCount = 5
	go func() {
		frame := make([]byte, frameSize)
		for i := 0; i < frameCount; i++ {
			frame[0] = byte(i)
			if err := surface.Publish(frame); err != nil {
				return
			}
		}
		surface.Close(nil)
	}()

	var encoded bytes.Buffer
	e := New("", time.Second, nil)
	frames, err := e.renderLoop(plan, blit, surface, &encoded)
	if err != nil {
		t.Fatalf("renderLoop: %v", err)
	}
	if frames != frameCount {
		t.Errorf("processed %d frames, want %d", frames, frameCount)
	}
	if encoded.Len() != frameCount*frameSize {
		t.Errorf("encoder received %d bytes, want %d", encoded.Len(), frameCount*frameSize)
	}

	// Frames arrive in publish order: frame i's marker pixel (top-left of
	// the source) lands at the bottom-right under a half turn.
	outW, outH := blit.OutputSize()
	for i := 0; i < frameCount; i++ {
		frame := encoded.Bytes()[i*frameSize : (i+1)*frameSize]
		marker := frame[((outH-1)*outW+(outW-1))*bytesPerPixel]
		if int(marker) != i {
			t.Errorf("frame %d has marker %d: reordered", i, marker)
		}
	}
}

func TestRenderLoopSurfaceTimeoutIsFatal(t *testing.T) {
	geom := transform.FrameGeometry{NaturalWidth: 4, NaturalHeight: 2, Preexisting: transform.Identity()}
	req, _ := transform.NewRotate(90)
	out, err := transform.Calculate(geom, req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	plan := engine.Plan{Geometry: geom, Request: req, Output: out, FrameRate: 30}

	blit, err := NewBlitter(plan)
	if err != nil {
		t.Fatalf("NewBlitter: %v", err)
	}

	e := New("", 20*time.Millisecond, nil)
	_, err = e.renderLoop(plan, blit, NewSurface(4*2*bytesPerPixel), &bytes.Buffer{})
	if !errors.Is(err, ErrFrameTimeout) {
		t.Errorf("expected ErrFrameTimeout, got %v", err)
	}
}

func TestRenderLoopPropagatesDecoderFailure(t *testing.T) {
	geom := transform.FrameGeometry{NaturalWidth: 4, NaturalHeight: 2, Preexisting: transform.Identity()}
	req, _ := transform.NewRotate(90)
	out, err := transform.Calculate(geom, req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	plan := engine.Plan{Geometry: geom, Request: req, Output: out, FrameRate: 30}

	blit, err := NewBlitter(plan)
	if err != nil {
		t.Fatalf("NewBlitter: %v", err)
	}

	surface := NewSurface(4 * 2 * bytesPerPixel)
	boom := errors.New("decode failed")
	surface.Close(boom)

	e := New("", time.Second, nil)
	if _, err := e.renderLoop(plan, blit, surface, &bytes.Buffer{}); !errors.Is(err, boom) {
		t.Errorf("expected decoder error, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	e := New("", 0, nil)
	if e.Name() != "pipeline" {
		t.Errorf("Name = %q", e.Name())
	}
	if e.frameTimeout != DefaultFrameTimeout {
		t.Errorf("frameTimeout = %v, want %v", e.frameTimeout, DefaultFrameTimeout)
	}
	if e.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q", e.ffmpegPath)
	}
}
