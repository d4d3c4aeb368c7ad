// Package bootstrap provides dependency initialization for the transform API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/vidtransform/internal/config"
	"github.com/maauso/vidtransform/internal/engine"
	"github.com/maauso/vidtransform/internal/engine/compose"
	"github.com/maauso/vidtransform/internal/engine/pipeline"
	"github.com/maauso/vidtransform/internal/job"
	"github.com/maauso/vidtransform/internal/probe"
	"github.com/maauso/vidtransform/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	TransformService *job.TransformService
	EngineName       string

	closers []func() error
}

// Close releases resources held by the dependencies, such as the job store.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := initRepository(cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	prober := probe.NewProber(cfg.FFprobePath)

	eng, err := initEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.EngineName = eng.Name()

	deps.TransformService = job.NewTransformService(
		repo,
		prober,
		eng,
		store,
		logger,
		job.WithUpload(cfg.S3Enabled()),
	)

	return deps, nil
}

// initEngine selects the transformation engine from configuration.
func initEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineCompose:
		return compose.New(cfg.FFmpegPath, cfg.ExportFPS, logger), nil
	case config.EnginePipeline:
		return pipeline.New(cfg.FFmpegPath, cfg.FrameWaitTimeout, logger), nil
	default:
		return nil, config.ErrUnknownEngine
	}
}

// initRepository selects the job store: SQLite when a path is configured,
// in-memory otherwise.
func initRepository(cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Repository, error) {
	if cfg.JobStorePath == "" {
		logger.Info("in-memory job store configured")
		return job.NewMemoryRepository(), nil
	}

	repo, err := job.OpenSQLiteRepository(cfg.JobStorePath)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	deps.closers = append(deps.closers, repo.Close)
	logger.Info("sqlite job store configured",
		slog.String("path", cfg.JobStorePath),
	)
	return repo, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.ScratchDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("scratch_dir", cfg.ScratchDir),
	)
	return localStore, nil
}
