package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"video.mp4", "video/mp4"},
		{"VIDEO.MP4", "video/mp4"},
		{"video.mov", "video/quicktime"},
		{"video.avi", "video/x-msvideo"},
		{"video.mkv", "video/x-matroska"},
		{"video.webm", "video/webm"},
		{"captions.ass", "text/x-ssa"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			assert.Equal(t, tt.wantType, getContentType(tt.filePath))
		})
	}
}

func TestObjectKey(t *testing.T) {
	id, key := objectKey("/media/user-1/folder-2/", "/tmp/work/final.MP4")

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "media/user-1/folder-2/"+id+".mp4", key)

	otherID, otherKey := objectKey("media/user-1/folder-2", "/tmp/work/final.mp4")
	assert.NotEqual(t, id, otherID)
	assert.True(t, strings.HasPrefix(otherKey, "media/user-1/folder-2/"))
}

func TestClampExpiry(t *testing.T) {
	assert.Equal(t, maxURLExpiry, clampExpiry(0))
	assert.Equal(t, maxURLExpiry, clampExpiry(30*24*time.Hour))
	assert.Equal(t, time.Hour, clampExpiry(time.Hour))
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"}, nil)
	assert.Error(t, err)
}

func TestNewGCSRequiresBucket(t *testing.T) {
	_, err := NewGCS(context.Background(), config.GCSConfig{}, nil)
	assert.Error(t, err)
}

func TestMinIOStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}

	ctx := context.Background()
	store, err := NewMinIO(ctx, config.MinIOConfig{
		Endpoint:        endpoint,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		BucketName:      "caption-test",
		Region:          "us-east-1",
		URLExpiry:       time.Hour,
	}, nil)
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(local, []byte("fake video"), 0644))

	ref, err := store.Store(ctx, local, "media/user-1/folder-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(len("fake video")), ref.Size)
	assert.Equal(t, "video/mp4", ref.ContentType)
	assert.NotEmpty(t, ref.URL)

	keys, err := store.List(ctx, "media/user-1/folder-1/")
	require.NoError(t, err)
	assert.Contains(t, keys, ref.Key)

	require.NoError(t, store.Delete(ctx, ref.Key))
}
