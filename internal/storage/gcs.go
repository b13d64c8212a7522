package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// GCSStore stores media in a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *logging.Logger
}

// NewGCS creates a GCS backend using application default credentials
// unless a credentials file is configured
func NewGCS(ctx context.Context, cfg config.GCSConfig, logger *logging.Logger) (*GCSStore, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	if logger == nil {
		logger = logging.Nop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.BucketName,
		logger: logger,
	}, nil
}

// Store uploads a local file and returns its public object URL
func (s *GCSStore) Store(ctx context.Context, localPath, dir, ownerID string) (*models.StorageReference, error) {
	id, key := objectKey(dir, localPath)
	contentType := getContentType(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	start := time.Now()
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{ownerMetadataKey: ownerID}

	size, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		s.logger.LogStorageOperation("upload", s.bucket, key, size, time.Since(start), err)
		metrics.RecordStorageOperation("upload", err, 0)
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	err = w.Close()
	s.logger.LogStorageOperation("upload", s.bucket, key, size, time.Since(start), err)
	metrics.RecordStorageOperation("upload", err, size)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	return &models.StorageReference{
		ID:          id,
		Key:         key,
		URL:         fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Delete deletes an object from the bucket
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List lists objects with a prefix
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, attrs.Name)
	}

	return objects, nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
