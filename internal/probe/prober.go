// Package probe inspects media containers with ffprobe. It locates the video
// and audio tracks of a source file and extracts the frame geometry the
// transform calculator needs, including any orientation baked in by the
// recording device.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/maauso/vidtransform/internal/transform"
)

// Static errors for probing.
var (
	// ErrNoVideoTrack is returned when the source contains no video stream.
	ErrNoVideoTrack = errors.New("no video track found in source")
	// ErrProbeExecution is returned when the ffprobe command fails.
	ErrProbeExecution = errors.New("ffprobe execution failed")
)

// VideoStream describes the single video track of a source.
type VideoStream struct {
	// Index is the stream index inside the container.
	Index int
	// Codec is the codec name as reported by ffprobe.
	Codec string
	// Width and Height are the natural (stored) frame dimensions.
	Width  int
	Height int
	// Rotation is the embedded orientation in degrees, normalized to
	// 0, 90, 180 or 270 counter-clockwise.
	Rotation int
	// FrameRate is the average frame rate in frames per second.
	FrameRate float64
}

// AudioStream describes the optional audio track of a source.
type AudioStream struct {
	Index      int
	Codec      string
	Channels   int
	SampleRate int
}

// Metadata is the result of probing one source file.
type Metadata struct {
	// Video is the single video track. Probe fails when none exists.
	Video *VideoStream
	// Audio is the first audio track, nil when the source has none.
	Audio *AudioStream
	// Duration is the container duration in seconds.
	Duration float64
	// Container is the format name reported by ffprobe.
	Container string
}

// HasAudio reports whether the source carries an audio track.
func (m *Metadata) HasAudio() bool {
	return m.Audio != nil
}

// FrameGeometry converts the probed video track into the calculator's input:
// natural dimensions plus the embedded orientation as an affine transform.
// Rotation is counter-clockwise (the display-matrix convention) while the
// transform package's angles are clockwise, so quarter turns flip here.
func (m *Metadata) FrameGeometry() transform.FrameGeometry {
	geom := transform.FrameGeometry{
		NaturalWidth:  m.Video.Width,
		NaturalHeight: m.Video.Height,
		Preexisting:   transform.Identity(),
	}
	switch m.Video.Rotation {
	case 90:
		geom.Preexisting = transform.OrientationFor(transform.Angle270, m.Video.Width, m.Video.Height)
	case 180:
		geom.Preexisting = transform.OrientationFor(transform.Angle180, m.Video.Width, m.Video.Height)
	case 270:
		geom.Preexisting = transform.OrientationFor(transform.Angle90, m.Video.Width, m.Video.Height)
	}
	return geom
}

// Prober runs ffprobe against source files.
type Prober struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewProber creates a new Prober. If ffprobePath is empty, it defaults to
// "ffprobe" (found via PATH).
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// ffprobe JSON output shapes. Only the fields we read are declared.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Channels     int               `json:"channels"`
	SampleRate   string            `json:"sample_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string          `json:"side_data_type"`
	Rotation     json.RawMessage `json:"rotation"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Probe inspects the source file and returns its track metadata.
// It returns ErrNoVideoTrack when the file has no video stream.
func (p *Prober) Probe(ctx context.Context, path string) (*Metadata, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrProbeExecution, err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	return parseMetadata(&out)
}

func parseMetadata(out *ffprobeOutput) (*Metadata, error) {
	meta := &Metadata{Container: out.Format.FormatName}

	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			meta.Duration = d
		}
	}

	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if meta.Video != nil {
				continue // single-track engine: first video stream wins
			}
			meta.Video = &VideoStream{
				Index:     s.Index,
				Codec:     s.CodecName,
				Width:     s.Width,
				Height:    s.Height,
				Rotation:  streamRotation(s),
				FrameRate: parseFrameRate(s.AvgFrameRate, s.RFrameRate),
			}
		case "audio":
			if meta.Audio != nil {
				continue
			}
			sampleRate, _ := strconv.Atoi(s.SampleRate)
			meta.Audio = &AudioStream{
				Index:      s.Index,
				Codec:      s.CodecName,
				Channels:   s.Channels,
				SampleRate: sampleRate,
			}
		}
	}

	if meta.Video == nil {
		return nil, ErrNoVideoTrack
	}
	return meta, nil
}

// streamRotation extracts the embedded orientation of a video stream.
// Modern ffprobe reports it as display-matrix side data; older files carry a
// "rotate" tag instead.
func streamRotation(s *ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if !strings.EqualFold(sd.SideDataType, "Display Matrix") || len(sd.Rotation) == 0 {
			continue
		}
		// The rotation field has been emitted both as a number and as a
		// quoted string across ffprobe versions.
		var f float64
		if err := json.Unmarshal(sd.Rotation, &f); err == nil {
			return normalizeRotation(f)
		}
		var str string
		if err := json.Unmarshal(sd.Rotation, &str); err == nil {
			if f, err := strconv.ParseFloat(str, 64); err == nil {
				return normalizeRotation(f)
			}
		}
	}

	if s.Tags != nil {
		if v, ok := s.Tags["rotate"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				// The legacy tag is clockwise; display matrices are
				// counter-clockwise.
				return normalizeRotation(-f)
			}
		}
	}

	return 0
}

// normalizeRotation maps a counter-clockwise rotation in degrees into
// {0, 90, 180, 270}, snapping to the nearest quarter turn. Real-world
// orientation metadata is occasionally written with small deviations like
// 89.9 or -90.1.
func normalizeRotation(degrees float64) int {
	r := int(math.Round(degrees/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}

// parseFrameRate parses an ffprobe rational frame rate like "30000/1001",
// preferring the average rate and falling back to the raw rate.
func parseFrameRate(avg, raw string) float64 {
	if fps := parseRational(avg); fps > 0 {
		return fps
	}
	return parseRational(raw)
}

func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
