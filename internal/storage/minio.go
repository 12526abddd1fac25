package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"huddle/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stores blobs in an S3-compatible bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to the configured S3-compatible endpoint and ensures
// the bucket exists.
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.BlobEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.BlobAccessKey, cfg.BlobSecretKey, ""),
		Secure: cfg.BlobUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BlobBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.BlobBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BlobBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.BlobBucket, err)
		}
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.BlobBucket,
		publicURL: strings.TrimRight(cfg.BlobPublicURL, "/"),
	}, nil
}

// Store uploads the blob under a random object name, keeping the original
// file extension so content sniffers and CDNs behave.
func (s *MinioStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i:]
	}
	objectName := uuid.NewString() + ext

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", objectName, err)
	}

	return s.publicURL + "/" + objectName, nil
}
