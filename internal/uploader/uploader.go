// Package uploader ships failure archives to object storage.
package uploader

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"lancer/internal/config"
)

// Uploader copies one file to remote storage and returns its location.
type Uploader interface {
	Enabled() bool
	UploadFile(ctx context.Context, fs afero.Fs, localPath string) (string, error)
}

// NoopUploader never uploads.
type NoopUploader struct{}

// Enabled implements Uploader.
func (NoopUploader) Enabled() bool { return false }

// UploadFile implements Uploader.
func (NoopUploader) UploadFile(context.Context, afero.Fs, string) (string, error) {
	return "", nil
}

// New picks the configured backend. GCS wins when both are enabled.
func New(cfg config.StorageConfig) (Uploader, error) {
	switch {
	case cfg.GCS.Enabled:
		return NewGCS(cfg.GCS)
	case cfg.S3.Enabled:
		return NewS3(cfg.S3)
	default:
		return NoopUploader{}, nil
	}
}

func objectKey(prefix, localPath string) string {
	prefix = strings.Trim(prefix, "/")
	base := filepath.Base(localPath)
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}
