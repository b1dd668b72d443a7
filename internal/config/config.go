package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"reportstore/internal/storage"
)

const (
	defaultBackend        = "local"
	defaultMaxPresignTTL  = "1h"
	defaultPresignTTL     = "1h"
	defaultSweepInterval  = "5m"
	defaultTTLDays        = "30"
	defaultMaxUploadBytes = "52428800" // 50 MB
	defaultLocalBaseDir   = "./data/reports"
	defaultLocalBaseURL   = "http://localhost:8080/api/v1/files"
	defaultS3Region       = "us-east-1"
)

// Config is the resolved environment surface the service consumes.
type Config struct {
	DatabaseURL string
	Port        string

	Storage storage.Config

	DefaultPresignTTL time.Duration
	DefaultTTLDays    int
	SweepInterval     time.Duration
	MaxUploadBytes    int64
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("REPORTSTORE_DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("REPORTSTORE_DATABASE_URL is empty")
	}
	cfg.Port = getEnv("PORT", "8080")

	backend := strings.ToLower(getEnv("REPORTSTORE_BACKEND", defaultBackend))
	switch backend {
	case "s3", "oss", "minio", "local":
	default:
		return nil, fmt.Errorf("REPORTSTORE_BACKEND must be one of s3, oss, minio, local; got %q", backend)
	}

	maxPresignTTL, err := parseDurationEnv("REPORTSTORE_MAX_PRESIGN_TTL", defaultMaxPresignTTL)
	if err != nil {
		return nil, err
	}

	cfg.Storage = storage.Config{
		Backend:       backend,
		MaxPresignTTL: maxPresignTTL,
		S3: storage.S3Config{
			Endpoint:       strings.TrimSpace(os.Getenv("REPORTSTORE_S3_ENDPOINT")),
			Region:         getEnv("REPORTSTORE_S3_REGION", defaultS3Region),
			Bucket:         strings.TrimSpace(os.Getenv("REPORTSTORE_S3_BUCKET")),
			AccessKey:      strings.TrimSpace(os.Getenv("REPORTSTORE_S3_ACCESS_KEY")),
			SecretKey:      strings.TrimSpace(os.Getenv("REPORTSTORE_S3_SECRET_KEY")),
			ForcePathStyle: getEnv("REPORTSTORE_S3_FORCE_PATH_STYLE", "false") == "true",
		},
		Local: storage.LocalConfig{
			BaseDir:     getEnv("REPORTSTORE_LOCAL_BASE_DIR", defaultLocalBaseDir),
			BaseURL:     getEnv("REPORTSTORE_LOCAL_BASE_URL", defaultLocalBaseURL),
			TokenSecret: getEnv("REPORTSTORE_LOCAL_TOKEN_SECRET", ""),
		},
	}

	switch backend {
	case "local":
		if cfg.Storage.Local.TokenSecret == "" {
			return nil, fmt.Errorf("REPORTSTORE_LOCAL_TOKEN_SECRET is required for the local backend")
		}
	default:
		if cfg.Storage.S3.Bucket == "" {
			return nil, fmt.Errorf("REPORTSTORE_S3_BUCKET is required for backend %q", backend)
		}
	}

	cfg.DefaultPresignTTL, err = parseDurationEnv("REPORTSTORE_PRESIGN_TTL", defaultPresignTTL)
	if err != nil {
		return nil, err
	}
	cfg.SweepInterval, err = parseDurationEnv("REPORTSTORE_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}
	cfg.DefaultTTLDays, err = parseIntEnv("REPORTSTORE_DEFAULT_TTL_DAYS", defaultTTLDays)
	if err != nil {
		return nil, err
	}
	maxUpload, err := parseIntEnv("REPORTSTORE_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func parseIntEnv(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return n, nil
}
