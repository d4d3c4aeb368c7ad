package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/maauso/vidtransform/internal/engine"
	"github.com/maauso/vidtransform/internal/probe"
	"github.com/maauso/vidtransform/internal/storage"
	"github.com/maauso/vidtransform/internal/transform"
)

// Prober extracts video metadata from a source file.
// It acts as a port so the service can be tested without ffprobe.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Metadata, error)
}

// TransformService orchestrates the transformation workflow.
// It validates requests upfront, persists jobs, and drives each job
// through probe, calculation, engine execution and optional S3 upload.
type TransformService struct {
	repo   Repository
	prober Prober
	engine engine.Engine
	store  storage.Storage
	logger *slog.Logger
	upload bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a TransformService.
type Option func(*TransformService)

// WithUpload enables S3 upload of finished outputs.
func WithUpload(enabled bool) Option {
	return func(s *TransformService) {
		s.upload = enabled
	}
}

// NewTransformService creates a new TransformService.
func NewTransformService(repo Repository, prober Prober, eng engine.Engine, store storage.Storage, logger *slog.Logger, opts ...Option) *TransformService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TransformService{
		repo:    repo,
		prober:  prober,
		engine:  eng,
		store:   store,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rotate creates a job that rotates the video by the given angle.
// Validation errors are returned immediately, before any resources are
// opened; the returned job is PENDING and ready for Process.
func (s *TransformService) Rotate(ctx context.Context, inputPath string, degrees int) (*Job, error) {
	if _, err := transform.NewRotate(degrees); err != nil {
		return nil, err
	}
	return s.createJob(ctx, OperationRotate, inputPath, degrees, "", "")
}

// Crop creates a job that crops the video to the given aspect ratio at the
// given anchor. An empty anchor defaults to center.
func (s *TransformService) Crop(ctx context.Context, inputPath, ratio, anchor string) (*Job, error) {
	req, err := transform.NewCrop(ratio, anchor)
	if err != nil {
		return nil, err
	}
	return s.createJob(ctx, OperationCrop, inputPath, 0, ratio, string(req.Anchor))
}

// CropAndRotate creates a job that crops the video and then rotates the
// cropped result by the given angle.
func (s *TransformService) CropAndRotate(ctx context.Context, inputPath, ratio, anchor string, degrees int) (*Job, error) {
	req, err := transform.NewCropRotate(ratio, anchor, degrees)
	if err != nil {
		return nil, err
	}
	return s.createJob(ctx, OperationCropRotate, inputPath, degrees, ratio, string(req.Anchor))
}

func (s *TransformService) createJob(ctx context.Context, op Operation, inputPath string, degrees int, ratio, anchor string) (*Job, error) {
	normalized, err := normalizeInputPath(inputPath)
	if err != nil {
		return nil, err
	}

	j := New()
	j.Operation = op
	j.InputPath = normalized
	j.Angle = degrees
	j.AspectRatio = ratio
	j.Anchor = anchor

	s.logger.Info("creating transform job",
		slog.String("job_id", j.ID),
		slog.String("operation", string(op)),
		slog.String("input", normalized),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return j, nil
}

// GetJob retrieves a job by ID.
func (s *TransformService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs, newest first.
func (s *TransformService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// CancelJob cancels a pending or running job. Running jobs are interrupted
// by cancelling their processing context; the processing goroutine records
// the CANCELLED state. Returns ErrJobNotCancellable for terminal jobs.
func (s *TransformService) CancelJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch j.Status {
	case StatusPending:
		if err := j.Cancel(); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, j); err != nil {
			return nil, err
		}
		// A racing Process call registers its cancel hook before it reads
		// the job, so firing the hook here stops a job that is starting
		// concurrently with this cancellation.
		s.fireCancel(id)
		return j, nil
	case StatusRunning:
		s.fireCancel(id)
		return j, nil
	default:
		return nil, ErrJobNotCancellable
	}
}

// DeleteJob removes a job and its output file, if any.
func (s *TransformService) DeleteJob(ctx context.Context, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if j.OutputPath != "" {
		if err := s.store.Cleanup(ctx, []string{j.OutputPath}); err != nil {
			s.logger.Warn("failed to remove output file",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.repo.Delete(ctx, id)
}

// Process drives a job through the full workflow: probe, calculate, render,
// optional upload. It blocks until the job reaches a terminal state and is
// normally run in its own goroutine per job.
func (s *TransformService) Process(ctx context.Context, jobID string) error {
	// Register the cancel hook before the job is read so a cancel request
	// either lands in the stored state before the read, or finds a hook it
	// can fire. Either way a cancelled job never runs to completion.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.trackCancel(jobID, cancel)
	defer s.untrackCancel(jobID)

	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := j.Start(); err != nil {
		// Cancelled before processing began.
		if j.GetStatus() == StatusCancelled {
			return nil
		}
		return err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	meta, err := s.prober.Probe(runCtx, j.InputPath)
	if err != nil {
		if runCtx.Err() != nil {
			return s.cancelJob(ctx, j)
		}
		return s.failJob(ctx, j, probeCode(err), err)
	}

	req, err := buildRequest(j)
	if err != nil {
		return s.failJob(ctx, j, CodeFor(err), err)
	}

	out, err := transform.Calculate(meta.FrameGeometry(), req)
	if err != nil {
		return s.failJob(ctx, j, CodeFor(err), err)
	}

	outputName := fmt.Sprintf("transformed_%s.mp4", uuid.NewString())
	outputPath := s.store.OutputPath(outputName)

	plan := engine.Plan{
		InputPath:      j.InputPath,
		OutputPath:     outputPath,
		Geometry:       meta.FrameGeometry(),
		Request:        req,
		Output:         out,
		SourceRotation: meta.Video.Rotation,
		HasAudio:       meta.HasAudio(),
		FrameRate:      meta.Video.FrameRate,
	}

	s.logger.Info("running transform",
		slog.String("job_id", j.ID),
		slog.String("engine", s.engine.Name()),
		slog.Int("render_width", out.RenderWidth),
		slog.Int("render_height", out.RenderHeight),
	)

	if err := s.engine.Transform(runCtx, plan); err != nil {
		// Remove whatever the engine left behind.
		_ = s.store.Cleanup(ctx, []string{outputPath})

		if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
			return s.cancelJob(ctx, j)
		}
		return s.failJob(ctx, j, CodeExportFailed, err)
	}

	var videoURL string
	if s.upload {
		videoURL, err = s.uploadOutput(runCtx, outputName, outputPath)
		if err != nil {
			return s.failJob(ctx, j, CodeProcessingFailed, err)
		}
	}

	if err := j.Succeed(outputPath, videoURL); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	s.logger.Info("transform complete",
		slog.String("job_id", j.ID),
		slog.String("output", outputPath),
	)
	return nil
}

func (s *TransformService) uploadOutput(ctx context.Context, key, path string) (string, error) {
	rc, err := s.store.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open output for upload: %w", err)
	}
	defer func() { _ = rc.Close() }()

	url, err := s.store.UploadToS3(ctx, key, rc)
	if err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}
	return url, nil
}

func (s *TransformService) failJob(ctx context.Context, j *Job, code string, cause error) error {
	s.logger.Error("transform failed",
		slog.String("job_id", j.ID),
		slog.String("code", code),
		slog.String("error", cause.Error()),
	)
	if err := j.Fail(code, cause.Error()); err != nil {
		return err
	}
	return s.repo.Save(ctx, j)
}

func (s *TransformService) cancelJob(ctx context.Context, j *Job) error {
	s.logger.Info("transform cancelled", slog.String("job_id", j.ID))
	if err := j.Cancel(); err != nil {
		return err
	}
	j.ErrorCode = CodeCancelled
	return s.repo.Save(ctx, j)
}

// fireCancel invokes the registered cancel hook for a job, if any.
func (s *TransformService) fireCancel(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *TransformService) trackCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *TransformService) untrackCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// buildRequest reconstructs the validated transform request from the
// persisted job fields.
func buildRequest(j *Job) (transform.Request, error) {
	switch j.Operation {
	case OperationRotate:
		return transform.NewRotate(j.Angle)
	case OperationCrop:
		return transform.NewCrop(j.AspectRatio, j.Anchor)
	case OperationCropRotate:
		return transform.NewCropRotate(j.AspectRatio, j.Anchor, j.Angle)
	default:
		return transform.Request{}, fmt.Errorf("unknown operation %q", j.Operation)
	}
}

// normalizeInputPath validates the input path and strips an optional
// file:// prefix. The path must point to an existing regular file.
func normalizeInputPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "file://")

	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInputPath)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidInputPath, path)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: not a regular file: %s", ErrInvalidInputPath, path)
	}

	return path, nil
}

// probeCode maps a probe failure to its taxonomy code. A missing video
// track is its own category; any other probe failure means the decode
// session could not be established.
func probeCode(err error) string {
	if errors.Is(err, probe.ErrNoVideoTrack) {
		return CodeNoVideoTrack
	}
	return CodeSetupFailed
}

// CodeFor maps an error to its stable taxonomy code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInputPath):
		return CodeInvalidInputPath
	case errors.Is(err, transform.ErrInvalidAngle):
		return CodeInvalidAngle
	case errors.Is(err, transform.ErrInvalidAspectRatio):
		return CodeInvalidAspectRatio
	case errors.Is(err, transform.ErrInvalidAnchor):
		return CodeInvalidAnchor
	case errors.Is(err, transform.ErrInvalidDimensions):
		return CodeInvalidAspectRatio
	case errors.Is(err, probe.ErrNoVideoTrack):
		return CodeNoVideoTrack
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeProcessingFailed
	}
}
