package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// QueueStatus is the lifecycle state of a queue item
type QueueStatus string

// QueueStatus constants
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// Progress checkpoints reported by the pipeline
const (
	ProgressClaimed    = 10
	ProgressSettings   = 25
	ProgressTransform  = 50
	ProgressCaptions   = 60
	ProgressProbe      = 70
	ProgressPersist    = 85
	ProgressComplete   = 100
	progressLowerBound = 0
	progressUpperBound = 100
)

// ErrInvalidTransition is returned when a queue item cannot move to the requested state
var ErrInvalidTransition = errors.New("invalid queue item transition")

// QueueItem is an accepted upload waiting for, or going through, the caption pipeline
type QueueItem struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"user_id" db:"user_id"`
	FolderID      string        `json:"folder_id" db:"folder_id"`
	FilePath      string        `json:"file_path" db:"file_path"`
	OriginalName  string        `json:"original_name" db:"original_name"`
	FileSize      int64         `json:"file_size" db:"file_size"`
	MimeType      string        `json:"mime_type" db:"mime_type"`
	Overrides     ItemOverrides `json:"overrides" db:"overrides"`
	Status        QueueStatus   `json:"status" db:"status"`
	Progress      int           `json:"progress" db:"progress"`
	ErrorMessage  string        `json:"error_message,omitempty" db:"error_message"`
	Attempts      int           `json:"attempts" db:"attempts"`
	MediaUploadID *string       `json:"media_upload_id,omitempty" db:"media_upload_id"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// ItemOverrides holds per-upload processing overrides
type ItemOverrides struct {
	LoopCount    *int          `json:"loop_count,omitempty"`
	Reverse      *bool         `json:"reverse,omitempty"`
	BurnCaptions *bool         `json:"burn_captions,omitempty"`
	Caption      CaptionConfig `json:"caption,omitempty"`
}

// Value implements driver.Valuer for database storage
func (o ItemOverrides) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for database retrieval
func (o *ItemOverrides) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*o = ItemOverrides{}
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return nil
	}
}

// IsTerminal reports whether the item reached completed or failed
func (q *QueueItem) IsTerminal() bool {
	return q.Status == QueueStatusCompleted || q.Status == QueueStatusFailed
}

// MarkAsProcessing claims the item for a pipeline run. A processing item may be
// claimed again when the job runtime redelivers it.
func (q *QueueItem) MarkAsProcessing() (QueueStatus, error) {
	prev := q.Status
	if prev != QueueStatusPending && prev != QueueStatusProcessing {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, QueueStatusProcessing)
	}

	q.Status = QueueStatusProcessing
	q.Progress = ProgressClaimed
	q.ErrorMessage = ""
	return prev, nil
}

// UpdateProgress sets progress clamped to 0..100. Terminal items are left untouched.
func (q *QueueItem) UpdateProgress(progress int) {
	if q.IsTerminal() {
		return
	}
	if progress < progressLowerBound {
		progress = progressLowerBound
	}
	if progress > progressUpperBound {
		progress = progressUpperBound
	}
	q.Progress = progress
}

// MarkAsCompleted links the produced media upload and finishes the item
func (q *QueueItem) MarkAsCompleted(mediaUploadID string) (QueueStatus, error) {
	prev := q.Status
	if prev != QueueStatusProcessing {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, QueueStatusCompleted)
	}

	now := time.Now()
	q.Status = QueueStatusCompleted
	q.Progress = ProgressComplete
	q.MediaUploadID = &mediaUploadID
	q.ErrorMessage = ""
	q.ProcessedAt = &now
	return prev, nil
}

// MarkAsFailed records the failure message and counts the attempt
func (q *QueueItem) MarkAsFailed(message string) (QueueStatus, error) {
	prev := q.Status
	if q.IsTerminal() {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, QueueStatusFailed)
	}

	now := time.Now()
	q.Status = QueueStatusFailed
	q.ErrorMessage = message
	q.Attempts++
	q.ProcessedAt = &now
	return prev, nil
}
