// Package storage manages scratch output files produced by transformation
// jobs. It defines the Storage interface (port) for hexagonal architecture
// and implementations for local disk and S3 delivery.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for scratch output management.
// Implementations allocate output paths inside a scratch directory and
// optionally support S3 uploads for final delivery.
type Storage interface {
	// OutputPath returns the absolute path where an output file with the
	// given name should be written. The file is not created.
	OutputPath(name string) string

	// Open reads a scratch file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Cleanup removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
