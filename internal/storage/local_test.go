package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		scratchDir := filepath.Join(os.TempDir(), "vidtransform_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(scratchDir) }()

		storage, err := NewLocalStorage(scratchDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.ScratchDir() != scratchDir {
			t.Errorf("ScratchDir() = %v, want %v", storage.ScratchDir(), scratchDir)
		}

		info, err := os.Stat(scratchDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "vidtransform")
		if storage.ScratchDir() != expected {
			t.Errorf("ScratchDir() = %v, want %v", storage.ScratchDir(), expected)
		}
	})
}

func TestLocalStorage_OutputPath(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("joins name with scratch dir", func(t *testing.T) {
		path := storage.OutputPath("transformed_abc.mp4")
		expected := filepath.Join(storage.ScratchDir(), "transformed_abc.mp4")
		if path != expected {
			t.Errorf("OutputPath() = %v, want %v", path, expected)
		}
	})

	t.Run("strips directory components", func(t *testing.T) {
		path := storage.OutputPath("../../etc/passwd")
		expected := filepath.Join(storage.ScratchDir(), "passwd")
		if path != expected {
			t.Errorf("OutputPath() = %v, want %v", path, expected)
		}
	})
}

func TestLocalStorage_Open(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("opens existing file", func(t *testing.T) {
		path := storage.OutputPath("open_test.mp4")
		if err := os.WriteFile(path, []byte("frame data"), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		reader, err := storage.Open(ctx, path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "frame data" {
			t.Errorf("got %q, want %q", string(content), "frame data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := storage.Open(ctx, "/non/existent/file")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.Open(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Cleanup(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path := storage.OutputPath("cleanup_" + randomSuffix() + ".mp4")
			if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			paths = append(paths, path)
		}

		err := storage.Cleanup(ctx, paths)
		if err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.Cleanup(ctx, []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("Cleanup() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.Cleanup(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_UploadToS3(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.UploadToS3(ctx, "key", bytes.NewReader([]byte("data")))
	if err != ErrS3NotConfigured {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	scratchDir := filepath.Join(os.TempDir(), "vidtransform_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(scratchDir) })

	storage, err := NewLocalStorage(scratchDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
