package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage stores media buffers under stable keys and hands back
// addressable URLs.
type ObjectStorage interface {
	UploadBuffer(ctx context.Context, key string, data []byte) (string, error)
	DownloadToBuffer(ctx context.Context, key string) ([]byte, error)
}

// MinioOptions configures the MinIO-backed storage.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinioStorage implements ObjectStorage against a MinIO (or S3-compatible)
// endpoint.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

var _ ObjectStorage = (*MinioStorage)(nil)

// NewMinioStorage connects to the configured endpoint. The bucket is created
// lazily by EnsureBucket.
func NewMinioStorage(opts MinioOptions) (*MinioStorage, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("storage endpoint required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage bucket required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	return &MinioStorage{client: client, bucket: opts.Bucket, urlExpiry: expiry}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// UploadBuffer stores data under key and returns a presigned URL for it.
func (s *MinioStorage) UploadBuffer(ctx context.Context, key string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("object key required")
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeFor(key),
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", key, err)
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return presigned.String(), nil
}

// DownloadToBuffer reads the full object under key.
func (s *MinioStorage) DownloadToBuffer(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("object key required")
	}
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Health verifies the bucket is reachable.
func (s *MinioStorage) Health(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("object storage unreachable: %w", err)
	}
	return nil
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
