// Package blob abstracts where receipt images live. The application only
// ever reads and writes whole objects addressed by a relative path.
package blob

import (
	"context"
	"fmt"
	"io"

	"gastos/internal/config"
	applog "gastos/internal/log"
)

// Store is the blob storage port used for receipt images.
type Store interface {
	// Open returns the object's contents. The caller closes the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Write stores the object and returns the path it was stored under.
	Write(ctx context.Context, path string, r io.Reader) (string, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

// NewFromConfig selects and initializes the configured blob backend.
func NewFromConfig(cfg *config.Config, logger *applog.Logger) (Store, error) {
	switch cfg.BlobBackend {
	case "fs":
		store, err := NewFSStore(cfg.MediaDir)
		if err != nil {
			return nil, fmt.Errorf("initialize fs blob store: %w", err)
		}
		logger.Info("Initialized fs blob store", "media_dir", cfg.MediaDir)
		return store, nil
	case "s3":
		store, err := NewS3Store(cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize s3 blob store: %w", err)
		}
		logger.Info("Initialized s3 blob store",
			"bucket", cfg.S3Bucket,
			"endpoint", cfg.S3Endpoint)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.BlobBackend)
	}
}
