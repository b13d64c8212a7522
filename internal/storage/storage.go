package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// ownerMetadataKey is attached to every stored object
const ownerMetadataKey = "owner-id"

// Backend persists finished media files
type Backend interface {
	// Store uploads localPath under dir and returns where it landed
	Store(ctx context.Context, localPath, dir, ownerID string) (*models.StorageReference, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// New creates the backend selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (Backend, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinIO(ctx, cfg.MinIO, logger)
	case "gcs":
		return NewGCS(ctx, cfg.GCS, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectKey builds a unique key beneath dir keeping the file extension
func objectKey(dir, localPath string) (id, key string) {
	id = uuid.New().String()
	ext := strings.ToLower(filepath.Ext(localPath))
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	return id, path.Join(dir, id+ext)
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".m4v":
		return "video/x-m4v"
	case ".ass":
		return "text/x-ssa"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
