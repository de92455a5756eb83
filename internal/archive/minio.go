// Package archive exports generated audio to S3-compatible object storage
// and hands back presigned download URLs.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/narrata-labs/narrata-core/internal/config"
)

const contentTypeWAV = "audio/wav"

// Store wraps a MinIO client bound to one bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
	log       *slog.Logger
}

// New connects to the configured endpoint and ensures the bucket exists.
func New(ctx context.Context, cfg config.ArchiveConfig, log *slog.Logger) (*Store, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse archive endpoint: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check archive bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create archive bucket: %w", err)
		}
	}

	expiry := time.Duration(cfg.URLExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		urlExpiry: expiry,
		log:       log.With(slog.String("component", "archive")),
	}, nil
}

// Upload stores a WAV payload under the given object name and returns a
// presigned URL valid for the configured expiry.
func (s *Store) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeWAV})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", objectName, err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", objectName, err)
	}

	s.log.Info("archived audio",
		slog.String("object", objectName),
		slog.Int("bytes", len(data)))
	return presigned.String(), nil
}
