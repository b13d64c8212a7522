package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

const (
	// Part size for multipart uploads (16MB)
	partSize = 16 * 1024 * 1024

	// Number of parts uploaded concurrently
	uploadThreads = 4

	// Presigned URLs cannot outlive seven days
	maxURLExpiry = 7 * 24 * time.Hour
)

// MinIOStore stores media in an S3-compatible bucket
type MinIOStore struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
	logger     *logging.Logger
}

// NewMinIO creates a MinIO backend, creating the bucket when missing
func NewMinIO(ctx context.Context, cfg config.MinIOConfig, logger *logging.Logger) (*MinIOStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStore{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  clampExpiry(cfg.URLExpiry),
		logger:     logger,
	}, nil
}

// Store uploads a local file and returns a presigned reference to it
func (s *MinIOStore) Store(ctx context.Context, localPath, dir, ownerID string) (*models.StorageReference, error) {
	id, key := objectKey(dir, localPath)
	contentType := getContentType(localPath)

	start := time.Now()
	info, err := s.client.FPutObject(ctx, s.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{ownerMetadataKey: ownerID},
		PartSize:     partSize,
		NumThreads:   uploadThreads,
	})
	s.logger.LogStorageOperation("upload", s.bucketName, key, info.Size, time.Since(start), err)
	metrics.RecordStorageOperation("upload", err, info.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.urlExpiry, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate URL: %w", err)
	}

	return &models.StorageReference{
		ID:          id,
		Key:         key,
		URL:         url.String(),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

// Delete deletes an object from storage
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List lists objects with a prefix
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// Close is a no-op; the MinIO client holds no resources
func (s *MinIOStore) Close() error {
	return nil
}

func clampExpiry(expiry time.Duration) time.Duration {
	if expiry <= 0 || expiry > maxURLExpiry {
		return maxURLExpiry
	}
	return expiry
}
