package storage

import (
	"context"
	"fmt"

	"onboard/internal/config"
)

// New returns the document store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (DocumentStore, error) {
	switch cfg.Driver {
	case "s3":
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.Bucket, cfg.PublicBaseURL), nil
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.Bucket, cfg.PublicBaseURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
