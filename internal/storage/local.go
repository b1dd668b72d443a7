package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalConfig configures the filesystem backend. BaseURL is the public
// prefix of the service's own signed-download endpoint.
type LocalConfig struct {
	BaseDir     string
	BaseURL     string
	TokenSecret string
}

// LocalBackend stores blobs on the local filesystem. Presign has no
// native equivalent here, so it emits URLs pointing back at this
// service carrying an HMAC-signed token checked on download.
type LocalBackend struct {
	baseDir string
	baseURL string
	signer  *TokenSigner
	maxTTL  time.Duration
}

func NewLocalBackend(cfg LocalConfig, maxTTL time.Duration) (*LocalBackend, error) {
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, permanentErr("resolve base dir", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, permanentErr("create base dir", err)
	}
	return &LocalBackend{
		baseDir: abs,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  NewTokenSigner(cfg.TokenSecret),
		maxTTL:  maxTTL,
	}, nil
}

func (b *LocalBackend) Type() string { return "local" }

// Signer exposes the token signer so the download endpoint can verify
// issued tokens.
func (b *LocalBackend) Signer() *TokenSigner { return b.signer }

func (b *LocalBackend) Put(_ context.Context, key string, content io.Reader, _ int64, _ string) error {
	fullPath, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return permanentErr("create dir", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return permanentErr("create file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		_ = os.Remove(fullPath)
		return transientErr("write file", err)
	}
	return nil
}

// Presign verifies the key exists before issuing a token. Unlike the
// S3 backends a dangling local URL would 404 confusingly at our own
// endpoint, so existence is checked up front.
func (b *LocalBackend) Presign(_ context.Context, key string, ttl time.Duration, opts PresignOptions) (string, error) {
	fullPath, err := b.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", transientErr("stat "+key, err)
	}

	token, err := b.signer.Sign(key, clampTTL(ttl, b.maxTTL), opts)
	if err != nil {
		return "", permanentErr("sign token", err)
	}
	return fmt.Sprintf("%s/%s?token=%s", b.baseURL, key, url.QueryEscape(token)), nil
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	fullPath, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return transientErr("delete "+key, err)
	}
	return nil
}

func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := b.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, transientErr("stat "+key, err)
	}
	return true, nil
}

func (b *LocalBackend) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, transientErr("list "+prefix, err)
	}
	return keys, nil
}

// Open returns a reader for the blob at key, used by the signed
// download endpoint.
func (b *LocalBackend) Open(key string) (io.ReadCloser, error) {
	fullPath, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, transientErr("open "+key, err)
	}
	return f, nil
}

// resolve joins key under baseDir and rejects traversal outside it.
func (b *LocalBackend) resolve(key string) (string, error) {
	fullPath := filepath.Join(b.baseDir, filepath.Clean("/"+key))
	if !strings.HasPrefix(fullPath, b.baseDir+string(filepath.Separator)) {
		return "", permanentErr("resolve "+key, fmt.Errorf("key escapes base dir"))
	}
	return fullPath, nil
}

var _ Backend = (*LocalBackend)(nil)
