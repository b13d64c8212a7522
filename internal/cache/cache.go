package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// DefaultProgressTTL is how long a progress snapshot outlives its last update
const DefaultProgressTTL = 24 * time.Hour

// ProgressSnapshot is the cached view of a queue item for cheap polling
type ProgressSnapshot struct {
	QueueItemID   string             `json:"queue_item_id"`
	Status        models.QueueStatus `json:"status"`
	Progress      int                `json:"progress"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	MediaUploadID *string            `json:"media_upload_id,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Cache provides caching functionality using Redis
type Cache struct {
	client      *redis.Client
	progressTTL time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int, progressTTL time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if progressTTL <= 0 {
		progressTTL = DefaultProgressTTL
	}

	return &Cache{client: client, progressTTL: progressTTL}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func progressKey(itemID string) string {
	return fmt.Sprintf("queue_item:progress:%s", itemID)
}

// SetProgress caches the current state of a queue item
func (c *Cache) SetProgress(ctx context.Context, item *models.QueueItem) error {
	snapshot := ProgressSnapshot{
		QueueItemID:   item.ID,
		Status:        item.Status,
		Progress:      item.Progress,
		ErrorMessage:  item.ErrorMessage,
		MediaUploadID: item.MediaUploadID,
		UpdatedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	return c.client.Set(ctx, progressKey(item.ID), data, c.progressTTL).Err()
}

// GetProgress retrieves a cached snapshot; nil without error on a miss
func (c *Cache) GetProgress(ctx context.Context, itemID string) (*ProgressSnapshot, error) {
	data, err := c.client.Get(ctx, progressKey(itemID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get progress from cache: %w", err)
	}

	var snapshot ProgressSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}

	return &snapshot, nil
}

// DeleteProgress removes a cached snapshot
func (c *Cache) DeleteProgress(ctx context.Context, itemID string) error {
	return c.client.Del(ctx, progressKey(itemID)).Err()
}

// IncrementStat increments a counter
func (c *Cache) IncrementStat(ctx context.Context, stat string) error {
	return c.client.Incr(ctx, fmt.Sprintf("stats:%s", stat)).Err()
}

// GetStat reads a counter, returning 0 when unset
func (c *Cache) GetStat(ctx context.Context, stat string) (int64, error) {
	value, err := c.client.Get(ctx, fmt.Sprintf("stats:%s", stat)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return value, err
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
