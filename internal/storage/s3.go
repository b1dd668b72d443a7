package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config configures the S3-compatible backend. Endpoint is empty for
// AWS itself and points at the provider for OSS/MinIO.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Backend talks to any S3-compatible object store. Presigning is a
// local cryptographic operation and never hits the network.
type S3Backend struct {
	client    *awss3.Client
	presigner *awss3.PresignClient
	bucket    string
	kind      string
	maxTTL    time.Duration
}

// NewS3Backend creates a backend of the given kind ("s3", "oss" or
// "minio") from cfg. maxTTL bounds every presigned URL lifetime.
func NewS3Backend(ctx context.Context, kind string, cfg S3Config, maxTTL time.Duration) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, permanentErr("load aws config", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	client := awss3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Backend{
		client:    client,
		presigner: awss3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		kind:      kind,
		maxTTL:    maxTTL,
	}, nil
}

func (b *S3Backend) Type() string { return b.kind }

func (b *S3Backend) Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	input := &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          content,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return classify("put "+key, err)
	}
	return nil
}

func (b *S3Backend) Presign(ctx context.Context, key string, ttl time.Duration, opts PresignOptions) (string, error) {
	input := &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}
	if opts.ContentDisposition != "" {
		input.ResponseContentDisposition = aws.String(opts.ContentDisposition)
	}
	if opts.ContentType != "" {
		input.ResponseContentType = aws.String(opts.ContentType)
	}

	req, err := b.presigner.PresignGetObject(ctx, input,
		awss3.WithPresignExpires(clampTTL(ttl, b.maxTTL)))
	if err != nil {
		return "", classify("presign "+key, err)
	}
	return req.URL, nil
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	// DeleteObject succeeds on missing keys, which matches the
	// idempotent-delete contract.
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete "+key, err)
	}
	return nil
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, classify("head "+key, err)
	}
	return true, nil
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	for {
		out, err := b.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, classify("list "+prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return keys, nil
}

// classify maps an SDK error to the transient/permanent taxonomy.
// Non-API errors are network-level and retryable; API errors are
// retryable only for throttling and server-side failures.
func classify(op string, err error) error {
	if isNotFound(err) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return transientErr(op, err)
	}

	switch apiErr.ErrorCode() {
	case "RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError", "Throttling", "ThrottlingException":
		return transientErr(op, err)
	}

	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= http.StatusInternalServerError {
		return transientErr(op, err)
	}
	return permanentErr(op, err)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "StatusCode: 404")
}

var _ Backend = (*S3Backend)(nil)
