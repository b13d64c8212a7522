package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db     *DB
	logger *logging.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) observe(operation string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleQueueItem) {
		err = nil
	}
	r.logger.LogDatabaseOperation(operation, time.Since(start), err)
}

// Queue items

const queueItemColumns = `
	id, user_id, folder_id, file_path, original_name, file_size, mime_type,
	overrides, status, progress, error_message, attempts, media_upload_id,
	processed_at, created_at, updated_at`

func scanQueueItem(row pgx.Row) (*models.QueueItem, error) {
	var item models.QueueItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.FolderID, &item.FilePath, &item.OriginalName,
		&item.FileSize, &item.MimeType, &item.Overrides, &item.Status, &item.Progress,
		&item.ErrorMessage, &item.Attempts, &item.MediaUploadID, &item.ProcessedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateQueueItem inserts a pending queue item
func (r *Repository) CreateQueueItem(ctx context.Context, item *models.QueueItem) error {
	start := time.Now()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = models.QueueStatusPending
	}

	query := `
		INSERT INTO queue_items (id, user_id, folder_id, file_path, original_name, file_size, mime_type, overrides, status, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		item.ID, item.UserID, item.FolderID, item.FilePath, item.OriginalName,
		item.FileSize, item.MimeType, item.Overrides, item.Status, item.Progress,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	r.observe("create_queue_item", start, err)

	if err != nil {
		return fmt.Errorf("failed to create queue item: %w", err)
	}

	return nil
}

// GetQueueItem retrieves a queue item by ID
func (r *Repository) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	start := time.Now()
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE id = $1`

	item, err := scanQueueItem(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to get queue item: %w", err)
	}
	r.observe("get_queue_item", start, err)

	return item, err
}

// UpdateQueueItem persists the mutable state of item, but only when the
// stored status still equals expected. Otherwise ErrStaleQueueItem is returned.
func (r *Repository) UpdateQueueItem(ctx context.Context, item *models.QueueItem, expected models.QueueStatus) error {
	start := time.Now()
	query := `
		UPDATE queue_items
		SET status = $3, progress = $4, error_message = $5, attempts = $6,
		    media_upload_id = $7, processed_at = $8, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		item.ID, expected, item.Status, item.Progress, item.ErrorMessage,
		item.Attempts, item.MediaUploadID, item.ProcessedAt,
	).Scan(&item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("queue item %s is no longer %s: %w", item.ID, expected, ErrStaleQueueItem)
	} else if err != nil {
		err = fmt.Errorf("failed to update queue item: %w", err)
	}
	r.observe("update_queue_item", start, err)

	return err
}

// ListQueueItems lists queue items, newest first. An empty status lists all.
func (r *Repository) ListQueueItems(ctx context.Context, status models.QueueStatus, limit, offset int) ([]*models.QueueItem, error) {
	start := time.Now()
	query := `
		SELECT ` + queueItemColumns + `
		FROM queue_items
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		r.observe("list_queue_items", start, err)
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}
	err = rows.Err()
	r.observe("list_queue_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}

	return items, nil
}

// CountQueueItemsByStatus returns the number of items per status
func (r *Repository) CountQueueItemsByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status models.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue item count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// Folders

// CreateFolder inserts a folder
func (r *Repository) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}

	query := `
		INSERT INTO folders (id, user_id, name, default_loop_count, default_reverse, caption_template_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		folder.ID, folder.UserID, folder.Name, folder.DefaultLoopCount,
		folder.DefaultReverse, folder.CaptionTemplateID,
	).Scan(&folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// GetFolder retrieves a folder by ID
func (r *Repository) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	start := time.Now()
	var folder models.Folder

	query := `
		SELECT id, user_id, name, default_loop_count, default_reverse,
		       caption_template_id, created_at, updated_at
		FROM folders
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&folder.ID, &folder.UserID, &folder.Name, &folder.DefaultLoopCount,
		&folder.DefaultReverse, &folder.CaptionTemplateID, &folder.CreatedAt, &folder.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("folder %s: %w", id, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to get folder: %w", err)
	}
	r.observe("get_folder", start, err)
	if err != nil {
		return nil, err
	}

	return &folder, nil
}

// GetOrCreateFolderSettings returns the folder's content settings,
// creating them with defaults on first use
func (r *Repository) GetOrCreateFolderSettings(ctx context.Context, folderID string) (*models.FolderSettings, error) {
	start := time.Now()
	defaults := models.DefaultFolderSettings(folderID)

	insert := `
		INSERT INTO folder_settings (folder_id, tone, language, hashtag_count, include_emojis, custom_prompt)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (folder_id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, insert,
		defaults.FolderID, defaults.Tone, defaults.Language, defaults.HashtagCount,
		defaults.IncludeEmojis, defaults.CustomPrompt,
	)
	if err != nil {
		r.observe("get_or_create_folder_settings", start, err)
		return nil, fmt.Errorf("failed to create folder settings: %w", err)
	}

	var settings models.FolderSettings
	query := `
		SELECT folder_id, tone, language, hashtag_count, include_emojis, custom_prompt, created_at, updated_at
		FROM folder_settings
		WHERE folder_id = $1
	`
	err = r.db.Pool.QueryRow(ctx, query, folderID).Scan(
		&settings.FolderID, &settings.Tone, &settings.Language, &settings.HashtagCount,
		&settings.IncludeEmojis, &settings.CustomPrompt, &settings.CreatedAt, &settings.UpdatedAt,
	)
	r.observe("get_or_create_folder_settings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get folder settings: %w", err)
	}

	return &settings, nil
}

// Caption templates

// CreateCaptionTemplate inserts a caption template
func (r *Repository) CreateCaptionTemplate(ctx context.Context, t *models.CaptionTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO caption_templates (
			id, user_id, name, font_family, font_size, font_weight, primary_color,
			outline_color, outline_size, position, position_offset, words_per_caption,
			word_highlighting, highlight_color, highlight_style, background_opacity,
			alternating_loop, loop_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.Name, t.FontFamily, t.FontSize, t.FontWeight, t.PrimaryColor,
		t.OutlineColor, t.OutlineSize, t.Position, t.PositionOffset, t.WordsPerCaption,
		t.WordHighlighting, t.HighlightColor, t.HighlightStyle, t.BackgroundOpacity,
		t.AlternatingLoop, t.LoopCount,
	).Scan(&t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create caption template: %w", err)
	}

	return nil
}

// GetCaptionTemplate retrieves a caption template by ID
func (r *Repository) GetCaptionTemplate(ctx context.Context, id string) (*models.CaptionTemplate, error) {
	start := time.Now()
	var t models.CaptionTemplate

	query := `
		SELECT id, user_id, name, font_family, font_size, font_weight, primary_color,
		       outline_color, outline_size, position, position_offset, words_per_caption,
		       word_highlighting, highlight_color, highlight_style, background_opacity,
		       alternating_loop, loop_count, created_at, updated_at
		FROM caption_templates
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Name, &t.FontFamily, &t.FontSize, &t.FontWeight, &t.PrimaryColor,
		&t.OutlineColor, &t.OutlineSize, &t.Position, &t.PositionOffset, &t.WordsPerCaption,
		&t.WordHighlighting, &t.HighlightColor, &t.HighlightStyle, &t.BackgroundOpacity,
		&t.AlternatingLoop, &t.LoopCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("caption template %s: %w", id, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to get caption template: %w", err)
	}
	r.observe("get_caption_template", start, err)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Media uploads

// CreateMediaUpload records a finished asset. A second call for the same
// queue item replaces the earlier record and keeps its ID.
func (r *Repository) CreateMediaUpload(ctx context.Context, m *models.MediaUploadResult) error {
	start := time.Now()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Hashtags == nil {
		m.Hashtags = []string{}
	}

	query := `
		INSERT INTO media_uploads (
			id, user_id, folder_id, queue_item_id, storage_id, storage_key, url, title,
			caption_template_id, loop_count, reverse, captions_burned, heading, caption,
			hashtags, metadata, status, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (queue_item_id) DO UPDATE SET
			storage_id = EXCLUDED.storage_id,
			storage_key = EXCLUDED.storage_key,
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			caption_template_id = EXCLUDED.caption_template_id,
			loop_count = EXCLUDED.loop_count,
			reverse = EXCLUDED.reverse,
			captions_burned = EXCLUDED.captions_burned,
			heading = EXCLUDED.heading,
			caption = EXCLUDED.caption,
			hashtags = EXCLUDED.hashtags,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.FolderID, m.QueueItemID, m.StorageID, m.StorageKey, m.URL, m.Title,
		m.CaptionTemplateID, m.LoopCount, m.Reverse, m.CaptionsBurned, m.Heading, m.Caption,
		m.Hashtags, m.Metadata, m.Status, m.ProcessedAt,
	).Scan(&m.ID, &m.CreatedAt)
	r.observe("create_media_upload", start, err)

	if err != nil {
		return fmt.Errorf("failed to create media upload: %w", err)
	}

	return nil
}

// GetMediaUpload retrieves a media upload by ID
func (r *Repository) GetMediaUpload(ctx context.Context, id string) (*models.MediaUploadResult, error) {
	var m models.MediaUploadResult

	query := `
		SELECT id, user_id, folder_id, queue_item_id, storage_id, storage_key, url, title,
		       caption_template_id, loop_count, reverse, captions_burned, heading, caption,
		       hashtags, metadata, status, processed_at, created_at
		FROM media_uploads
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.UserID, &m.FolderID, &m.QueueItemID, &m.StorageID, &m.StorageKey, &m.URL, &m.Title,
		&m.CaptionTemplateID, &m.LoopCount, &m.Reverse, &m.CaptionsBurned, &m.Heading, &m.Caption,
		&m.Hashtags, &m.Metadata, &m.Status, &m.ProcessedAt, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("media upload %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media upload: %w", err)
	}

	return &m, nil
}
