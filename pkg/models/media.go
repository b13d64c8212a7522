package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// MediaUploadStatusReady marks a finished, publishable asset
const MediaUploadStatusReady = "ready"

// MediaUploadResult is the finished asset produced by a pipeline run
type MediaUploadResult struct {
	ID                string          `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	FolderID          string          `json:"folder_id" db:"folder_id"`
	QueueItemID       string          `json:"queue_item_id" db:"queue_item_id"`
	StorageID         string          `json:"storage_id" db:"storage_id"`
	StorageKey        string          `json:"storage_key" db:"storage_key"`
	URL               string          `json:"url" db:"url"`
	Title             string          `json:"title" db:"title"`
	CaptionTemplateID *string         `json:"caption_template_id,omitempty" db:"caption_template_id"`
	LoopCount         int             `json:"loop_count" db:"loop_count"`
	Reverse           bool            `json:"reverse" db:"reverse"`
	CaptionsBurned    bool            `json:"captions_burned" db:"captions_burned"`
	Heading           string          `json:"heading" db:"heading"`
	Caption           string          `json:"caption" db:"caption"`
	Hashtags          []string        `json:"hashtags" db:"hashtags"`
	Metadata          VideoProperties `json:"metadata" db:"metadata"`
	Status            string          `json:"status" db:"status"`
	ProcessedAt       time.Time       `json:"processed_at" db:"processed_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// VideoProperties holds probed properties of a video file
type VideoProperties struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Format    string  `json:"format"`
	Codec     string  `json:"codec"`
	Bitrate   int64   `json:"bitrate"`
	FrameRate float64 `json:"frame_rate"`
	Size      int64   `json:"size"`
	HasAudio  bool    `json:"has_audio"`
}

// Value implements driver.Valuer for database storage
func (p VideoProperties) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for database retrieval
func (p *VideoProperties) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return nil
	}
}

// GeneratedContent is the social copy produced for an upload
type GeneratedContent struct {
	Heading  string   `json:"heading"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// StorageReference identifies a persisted binary
type StorageReference struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
