package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maauso/vidtransform/internal/engine"
	"github.com/maauso/vidtransform/internal/probe"
	"github.com/maauso/vidtransform/internal/transform"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func createTestVideo(t *testing.T, path string, width, height int, withAudio bool) {
	t.Helper()

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=%dx%d:rate=30:duration=1", width, height),
	}
	if withAudio {
		args = append(args,
			"-f", "lavfi",
			"-i", "anullsrc=r=44100:cl=mono:d=1",
			"-c:a", "aac",
			"-shortest",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		path,
	)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func runPipelinePlan(t *testing.T, req transform.Request, width, height int, withAudio bool) (source, result *probe.Metadata) {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	createTestVideo(t, input, width, height, withAudio)

	prober := probe.NewProber("ffprobe")
	meta, err := prober.Probe(context.Background(), input)
	require.NoError(t, err)

	out, err := transform.Calculate(meta.FrameGeometry(), req)
	require.NoError(t, err)

	eng := New("ffmpeg", DefaultFrameTimeout, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	err = eng.Transform(context.Background(), engine.Plan{
		InputPath:      input,
		OutputPath:     output,
		Geometry:       meta.FrameGeometry(),
		Request:        req,
		Output:         out,
		SourceRotation: meta.Video.Rotation,
		HasAudio:       meta.HasAudio(),
		FrameRate:      meta.Video.FrameRate,
	})
	require.NoError(t, err)

	// The intermediate video-only file is removed after muxing.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "only input and output should remain")

	result, err = prober.Probe(context.Background(), output)
	require.NoError(t, err)
	return meta, result
}

func TestPipeline_Rotate90_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewRotate(90)
	require.NoError(t, err)

	source, result := runPipelinePlan(t, req, 320, 240, true)

	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 320, result.Video.Height)

	// The muxer copies the audio track untouched: same codec, same length.
	require.True(t, result.HasAudio(), "audio track should pass through")
	require.Equal(t, source.Audio.Codec, result.Audio.Codec)
	require.InDelta(t, source.Duration, result.Duration, 0.25)
}

func TestPipeline_Crop_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewCrop("1:1", "center")
	require.NoError(t, err)

	_, result := runPipelinePlan(t, req, 320, 240, false)

	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 240, result.Video.Height)
	require.False(t, result.HasAudio())
}

func TestPipeline_CropRotate_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewCropRotate("9:16", "top", 270)
	require.NoError(t, err)

	_, result := runPipelinePlan(t, req, 320, 240, false)

	// 9:16 of 320x240 display is 134x240, rounded to even 134x240,
	// rotated a quarter turn.
	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 134, result.Video.Height)
}
