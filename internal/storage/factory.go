package storage

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "s3", "oss", "minio" or "local".
	Backend       string
	S3            S3Config
	Local         LocalConfig
	MaxPresignTTL time.Duration
}

// New builds the backend named by cfg.Backend. The three S3-compatible
// kinds share one implementation and differ only in endpoint and in the
// backend type recorded on file records.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "s3", "oss", "minio":
		return NewS3Backend(ctx, cfg.Backend, cfg.S3, cfg.MaxPresignTTL)
	case "local":
		return NewLocalBackend(cfg.Local, cfg.MaxPresignTTL)
	default:
		return nil, fmt.Errorf("storage: unsupported backend type %q", cfg.Backend)
	}
}
