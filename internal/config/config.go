// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Engine selection values.
const (
	// EngineCompose renders through a single ffmpeg filtergraph invocation.
	EngineCompose = "compose"
	// EnginePipeline renders through an explicit decode, blit, encode pipeline.
	EnginePipeline = "pipeline"
)

// Static errors for configuration validation.
var (
	// ErrUnknownEngine is returned when ENGINE is not a known engine name.
	ErrUnknownEngine = errors.New("config: ENGINE must be \"compose\" or \"pipeline\"")
	// ErrInvalidExportFPS is returned when EXPORT_FPS is not positive.
	ErrInvalidExportFPS = errors.New("config: EXPORT_FPS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Tool paths
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Storage settings
	ScratchDir string `env:"SCRATCH_DIR, default=/tmp/vidtransform" json:"scratch_dir"`

	// Engine settings
	Engine           string        `env:"ENGINE, default=compose" json:"engine"`
	ExportFPS        int           `env:"EXPORT_FPS, default=30" json:"export_fps"`
	FrameWaitTimeout time.Duration `env:"FRAME_WAIT_TIMEOUT, default=2500ms" json:"frame_wait_timeout"`

	// Job persistence. Empty keeps jobs in memory only.
	JobStorePath string `env:"JOB_STORE_PATH" json:"job_store_path,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineCompose, EnginePipeline:
	default:
		return ErrUnknownEngine
	}
	if c.ExportFPS <= 0 {
		return ErrInvalidExportFPS
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Engine: %s, ExportFPS: %d, ScratchDir: %s, JobStorePath: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Engine,
		c.ExportFPS,
		c.ScratchDir,
		c.JobStorePath,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
