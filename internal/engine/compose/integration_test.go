package compose

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

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createTestVideo creates a short test video with audio using ffmpeg.
func createTestVideo(t *testing.T, path string, width, height int) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d:d=1", width, height),
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono:d=1",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func runPlan(t *testing.T, req transform.Request, width, height int) (source, result *probe.Metadata) {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	createTestVideo(t, input, width, height)

	prober := probe.NewProber("ffprobe")
	meta, err := prober.Probe(context.Background(), input)
	require.NoError(t, err)

	out, err := transform.Calculate(meta.FrameGeometry(), req)
	require.NoError(t, err)

	eng := New("ffmpeg", DefaultExportFPS, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
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

	result, err = prober.Probe(context.Background(), output)
	require.NoError(t, err)
	return meta, result
}

func TestTransform_Rotate90_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewRotate(90)
	require.NoError(t, err)

	source, result := runPlan(t, req, 320, 240)

	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 320, result.Video.Height)
	require.Equal(t, 0, result.Video.Rotation)

	// The audio track is copied, not re-encoded: same codec, same length.
	require.True(t, result.HasAudio(), "audio track should pass through")
	require.Equal(t, source.Audio.Codec, result.Audio.Codec)
	require.InDelta(t, source.Duration, result.Duration, 0.25)
}

func TestTransform_CropSquare_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewCrop("1:1", "center")
	require.NoError(t, err)

	_, result := runPlan(t, req, 320, 240)

	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 240, result.Video.Height)
}

func TestTransform_CropRotate_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewCropRotate("1:1", "top-left", 90)
	require.NoError(t, err)

	_, result := runPlan(t, req, 320, 240)

	require.Equal(t, 240, result.Video.Width)
	require.Equal(t, 240, result.Video.Height)
}

func TestTransform_MissingInput(t *testing.T) {
	skipIfNoFFmpeg(t)

	req, err := transform.NewRotate(180)
	require.NoError(t, err)

	out, err := transform.Calculate(transform.FrameGeometry{NaturalWidth: 320, NaturalHeight: 240, Preexisting: transform.Identity()}, req)
	require.NoError(t, err)

	eng := New("ffmpeg", DefaultExportFPS, nil)
	err = eng.Transform(context.Background(), engine.Plan{
		InputPath:  "/no/such/input.mp4",
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		Request:    req,
		Output:     out,
	})
	require.Error(t, err)

	var ffErr *engine.FFmpegError
	require.ErrorAs(t, err, &ffErr)
	require.NotEmpty(t, ffErr.Stderr)
}
