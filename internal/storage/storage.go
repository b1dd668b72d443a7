// Package storage provides a uniform interface over object-storage
// providers. The S3-compatible backend covers AWS S3, Aliyun OSS and
// MinIO through a configurable endpoint; the local backend is a
// filesystem fallback for development and single-node deployments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist in the backend.
var ErrNotFound = errors.New("storage: object not found")

// Error wraps a backend failure with a retryability classification.
// Transient errors (network failures, throttling, 5xx) are safe to
// retry; everything else (auth, missing bucket) must fail fast.
type Error struct {
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable backend failure.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Transient
}

func transientErr(op string, err error) error {
	return &Error{Op: op, Transient: true, Err: err}
}

func permanentErr(op string, err error) error {
	return &Error{Op: op, Transient: false, Err: err}
}

// PresignOptions override response headers on the issued URL.
type PresignOptions struct {
	ContentDisposition string
	ContentType        string
}

// Backend is the capability set every object-storage provider implements.
type Backend interface {
	// Type identifies the provider ("s3", "oss", "minio" or "local").
	Type() string

	// Put writes content under key. Safe to retry on transient errors.
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error

	// Presign returns a time-boxed URL for reading key. The ttl is
	// clamped to the backend's configured maximum.
	Presign(ctx context.Context, key string, ttl time.Duration, opts PresignOptions) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

func clampTTL(ttl, max time.Duration) time.Duration {
	if ttl <= 0 || ttl > max {
		return max
	}
	return ttl
}
