package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/captions"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/tracing"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

const defaultWorkingExt = ".mp4"

// ItemStore loads and persists queue items
type ItemStore interface {
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
	UpdateQueueItem(ctx context.Context, item *models.QueueItem, expected models.QueueStatus) error
}

// Store is the relational store the pipeline reads its context from
type Store interface {
	ItemStore
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	GetOrCreateFolderSettings(ctx context.Context, folderID string) (*models.FolderSettings, error)
	GetCaptionTemplate(ctx context.Context, id string) (*models.CaptionTemplate, error)
	CreateMediaUpload(ctx context.Context, m *models.MediaUploadResult) error
}

// ContentGenerator produces social copy and in-video caption text
type ContentGenerator interface {
	Generate(ctx context.Context, localPath, title string, settings *models.FolderSettings, userID string) (*models.GeneratedContent, error)
	GenerateInVideoCaption(ctx context.Context, localPath, title string, settings *models.FolderSettings, template *models.CaptionTemplate, userID string, override models.CaptionConfig) (string, error)
}

// VideoTransformer applies loop/reverse and probes video files
type VideoTransformer interface {
	ProcessVideo(ctx context.Context, inputPath, outputPath string, loopCount int, reverse bool) error
	GetVideoProperties(ctx context.Context, path string) (models.VideoProperties, error)
}

// CaptionBurner burns caption text into a video
type CaptionBurner interface {
	Burn(ctx context.Context, req captions.BurnRequest) (string, error)
}

// StorageBackend persists the finished video
type StorageBackend interface {
	Store(ctx context.Context, localPath, dir, ownerID string) (*models.StorageReference, error)
}

// ProgressCache mirrors queue item progress for cheap polling
type ProgressCache interface {
	SetProgress(ctx context.Context, item *models.QueueItem) error
}

// Dependencies are the collaborators a Worker drives
type Dependencies struct {
	Store       Store
	Content     ContentGenerator
	Transformer VideoTransformer
	Burner      CaptionBurner
	Storage     StorageBackend
	Progress    ProgressCache
}

// Worker runs the caption pipeline for one queue item at a time. It holds no
// per-item state and is safe to share between consumers.
type Worker struct {
	deps    Dependencies
	tempDir string
	logger  *logging.Logger
}

// NewWorker creates a pipeline worker. Working files live under tempDir.
func NewWorker(deps Dependencies, tempDir string, logger *logging.Logger) *Worker {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Worker{
		deps:    deps,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Run drives the queue item through every stage. Failures are recorded on the
// item and reported in the Result; Run never panics on collaborator errors.
func (w *Worker) Run(ctx context.Context, itemID string) Result {
	span, ctx := tracing.StartSpan(ctx, "pipeline.run")
	tracing.SetTag(span, "queue_item_id", itemID)

	res := w.run(ctx, itemID)

	tracing.SetTag(span, "outcome", string(res.Outcome))
	tracing.FinishSpan(span, res.Err)
	return res
}

func (w *Worker) run(ctx context.Context, itemID string) Result {
	logger := w.logger.WithQueueItemID(itemID)

	item, err := w.deps.Store.GetQueueItem(ctx, itemID)
	if errors.Is(err, database.ErrNotFound) {
		logger.Warn("Queue item no longer exists, skipping")
		return Result{Outcome: OutcomeSkipped, QueueItemID: itemID, Err: err}
	}
	if err != nil {
		return Result{Outcome: OutcomeRetry, QueueItemID: itemID, Err: fmt.Errorf("failed to load queue item: %w", err)}
	}
	if item.IsTerminal() {
		logger.Infof("Queue item already %s, skipping", item.Status)
		return Result{Outcome: OutcomeSkipped, QueueItemID: itemID}
	}

	sc := newScratch(w.tempDir, item.ID, item.FilePath)
	defer func() {
		if !item.IsTerminal() {
			return
		}
		if err := sc.Release(); err != nil {
			logger.WithError(err).Warn("Failed to clean up scratch files")
		}
	}()

	folder, err := w.deps.Store.GetFolder(ctx, item.FolderID)
	if errors.Is(err, database.ErrNotFound) {
		return w.fail(ctx, item, ErrFolderNotFound)
	}
	if err != nil {
		return Result{Outcome: OutcomeRetry, QueueItemID: itemID, Err: fmt.Errorf("failed to load folder: %w", err)}
	}

	if err := w.transition(ctx, item, item.MarkAsProcessing); err != nil {
		return w.classify(item, err)
	}
	logger.LogQueueItemEvent(item.ID, "claimed", string(item.Status), map[string]interface{}{
		"attempts":  item.Attempts,
		"folder_id": folder.ID,
	})

	mediaID, err := w.process(ctx, item, folder, sc)
	if err != nil {
		if isRetryable(err) || errors.Is(err, database.ErrStaleQueueItem) {
			return w.classify(item, err)
		}
		return w.fail(ctx, item, err)
	}

	logger.LogQueueItemEvent(item.ID, "completed", string(item.Status), map[string]interface{}{
		"media_upload_id": mediaID,
	})
	return Result{Outcome: OutcomeCompleted, QueueItemID: item.ID, MediaUploadID: mediaID}
}

func (w *Worker) process(ctx context.Context, item *models.QueueItem, folder *models.Folder, sc *scratch) (string, error) {
	err := w.stage(ctx, item, "verify", func(ctx context.Context) error {
		return checkStaged(item.FilePath)
	})
	if err != nil {
		return "", err
	}

	if err := w.advance(ctx, item, models.ProgressSettings); err != nil {
		return "", err
	}

	var settings *models.FolderSettings
	err = w.stage(ctx, item, "settings", func(ctx context.Context) error {
		s, err := w.deps.Store.GetOrCreateFolderSettings(ctx, folder.ID)
		if err != nil {
			return retryable(fmt.Errorf("failed to load folder settings: %w", err))
		}
		settings = s
		return nil
	})
	if err != nil {
		return "", err
	}

	title := deriveTitle(item)

	var generated *models.GeneratedContent
	err = w.stage(ctx, item, "content", func(ctx context.Context) error {
		g, err := w.deps.Content.Generate(ctx, item.FilePath, title, settings, item.UserID)
		metrics.RecordContentGeneration("content", err)
		if err != nil {
			return fmt.Errorf("content generation failed: %w", err)
		}
		if g == nil {
			g = &models.GeneratedContent{}
		}
		generated = g
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := w.advance(ctx, item, models.ProgressTransform); err != nil {
		return "", err
	}

	loopCount, reverse := resolveTransform(item, folder)
	working, err := sc.WorkingFile(workingExt(item.FilePath))
	if err != nil {
		return "", err
	}
	err = w.stage(ctx, item, "transform", func(ctx context.Context) error {
		if err := w.deps.Transformer.ProcessVideo(ctx, item.FilePath, working, loopCount, reverse); err != nil {
			return fmt.Errorf("video transform failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := w.advance(ctx, item, models.ProgressCaptions); err != nil {
		return "", err
	}

	var (
		burned     bool
		templateID *string
	)
	if wantsCaptions(item) {
		err = w.stage(ctx, item, "captions", func(ctx context.Context) error {
			template, err := w.loadTemplate(ctx, item, folder)
			if err != nil {
				return err
			}

			text := firstNonEmpty(
				w.inVideoCaption(ctx, item, title, settings, template),
				generated.Caption,
				generated.Heading,
				title,
			)
			if text == "" {
				return nil
			}

			props, err := w.deps.Transformer.GetVideoProperties(ctx, working)
			if err != nil {
				return fmt.Errorf("failed to probe transformed video: %w", err)
			}
			if props.Duration <= 0 {
				metrics.RecordCaptionBurn("skipped_zero_duration")
				w.logger.WithQueueItemID(item.ID).Warn("Transformed video reports zero duration, skipping caption burn")
				return nil
			}

			out, err := sc.WorkingFile(defaultWorkingExt)
			if err != nil {
				return err
			}
			result, err := w.deps.Burner.Burn(ctx, captions.BurnRequest{
				InputPath:  working,
				OutputPath: out,
				Text:       text,
				Duration:   props.Duration,
				Style:      styleSource(template, item.Overrides.Caption),
				Width:      props.Width,
				Height:     props.Height,
			})
			if err != nil {
				metrics.RecordCaptionBurn("failed")
				return err
			}
			metrics.RecordCaptionBurn("burned")

			if err := sc.Remove(working); err != nil {
				w.logger.WithQueueItemID(item.ID).WithError(err).Warn("Failed to remove uncaptioned working file")
			}
			working = result
			burned = true
			if template != nil {
				templateID = &template.ID
			}
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	if err := w.advance(ctx, item, models.ProgressProbe); err != nil {
		return "", err
	}

	var props models.VideoProperties
	err = w.stage(ctx, item, "probe", func(ctx context.Context) error {
		p, err := w.deps.Transformer.GetVideoProperties(ctx, working)
		if err != nil {
			return fmt.Errorf("failed to probe final video: %w", err)
		}
		props = p
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := w.advance(ctx, item, models.ProgressPersist); err != nil {
		return "", err
	}

	var ref *models.StorageReference
	err = w.stage(ctx, item, "store", func(ctx context.Context) error {
		r, err := w.deps.Storage.Store(ctx, working, folder.StoragePath(), item.UserID)
		if err != nil {
			return fmt.Errorf("failed to store video: %w", err)
		}
		ref = r
		return nil
	})
	if err != nil {
		return "", err
	}

	media := &models.MediaUploadResult{
		ID:                uuid.New().String(),
		UserID:            item.UserID,
		FolderID:          folder.ID,
		QueueItemID:       item.ID,
		StorageID:         ref.ID,
		StorageKey:        ref.Key,
		URL:               ref.URL,
		Title:             title,
		CaptionTemplateID: templateID,
		LoopCount:         loopCount,
		Reverse:           reverse,
		CaptionsBurned:    burned,
		Heading:           generated.Heading,
		Caption:           generated.Caption,
		Hashtags:          generated.Hashtags,
		Metadata:          props,
		Status:            models.MediaUploadStatusReady,
		ProcessedAt:       time.Now(),
	}
	err = w.stage(ctx, item, "record", func(ctx context.Context) error {
		if err := w.deps.Store.CreateMediaUpload(ctx, media); err != nil {
			return retryable(fmt.Errorf("failed to record media upload: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	complete := func() (models.QueueStatus, error) { return item.MarkAsCompleted(media.ID) }
	if err := w.transition(ctx, item, complete); err != nil {
		return "", err
	}

	return media.ID, nil
}

// stage runs fn inside a span and records its duration
func (w *Worker) stage(ctx context.Context, item *models.QueueItem, name string, fn func(ctx context.Context) error) error {
	span, ctx := tracing.StartSpan(ctx, "pipeline."+name)
	tracing.SetTag(span, "queue_item_id", item.ID)

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	tracing.FinishSpan(span, err)
	metrics.RecordStage(name, err != nil, elapsed.Seconds())
	w.logger.LogStage(item.ID, name, item.Progress, elapsed, err)
	return err
}

// advance persists a new progress checkpoint
func (w *Worker) advance(ctx context.Context, item *models.QueueItem, progress int) error {
	item.UpdateProgress(progress)
	if err := w.save(ctx, item, models.QueueStatusProcessing); err != nil {
		if errors.Is(err, database.ErrStaleQueueItem) {
			return err
		}
		return retryable(fmt.Errorf("failed to persist progress: %w", err))
	}
	return nil
}

// transition applies a state change and persists it. The in-memory item is
// restored when the store rejects the update.
func (w *Worker) transition(ctx context.Context, item *models.QueueItem, apply func() (models.QueueStatus, error)) error {
	snapshot := *item
	prev, err := apply()
	if err != nil {
		return err
	}
	if err := w.save(ctx, item, prev); err != nil {
		*item = snapshot
		if errors.Is(err, database.ErrStaleQueueItem) {
			return err
		}
		return retryable(fmt.Errorf("failed to persist %s status: %w", item.Status, err))
	}
	return nil
}

func (w *Worker) save(ctx context.Context, item *models.QueueItem, expected models.QueueStatus) error {
	if err := w.deps.Store.UpdateQueueItem(ctx, item, expected); err != nil {
		return err
	}
	mirrorProgress(ctx, w.deps.Progress, item, w.logger)
	return nil
}

// fail marks the item failed with cause as its error message
func (w *Worker) fail(ctx context.Context, item *models.QueueItem, cause error) Result {
	logger := w.logger.WithQueueItemID(item.ID)

	mark := func() (models.QueueStatus, error) { return item.MarkAsFailed(cause.Error()) }
	if err := w.transition(context.WithoutCancel(ctx), item, mark); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, database.ErrStaleQueueItem) {
			logger.WithError(err).Warn("Queue item changed underneath the pipeline, not marking failed")
			return Result{Outcome: OutcomeSkipped, QueueItemID: item.ID, Err: cause}
		}
		logger.WithError(err).Error("Failed to record queue item failure")
		return Result{Outcome: OutcomeRetry, QueueItemID: item.ID, Err: err}
	}

	logger.LogQueueItemEvent(item.ID, "failed", string(item.Status), map[string]interface{}{
		"error":    cause.Error(),
		"attempts": item.Attempts,
	})
	return Result{Outcome: OutcomeFailed, QueueItemID: item.ID, Err: cause}
}

func (w *Worker) classify(item *models.QueueItem, err error) Result {
	if errors.Is(err, database.ErrStaleQueueItem) || errors.Is(err, models.ErrInvalidTransition) {
		w.logger.WithQueueItemID(item.ID).WithError(err).Warn("Queue item is owned elsewhere, skipping")
		return Result{Outcome: OutcomeSkipped, QueueItemID: item.ID, Err: err}
	}
	return Result{Outcome: OutcomeRetry, QueueItemID: item.ID, Err: err}
}

func (w *Worker) loadTemplate(ctx context.Context, item *models.QueueItem, folder *models.Folder) (*models.CaptionTemplate, error) {
	if folder.CaptionTemplateID == nil || *folder.CaptionTemplateID == "" {
		return nil, nil
	}

	template, err := w.deps.Store.GetCaptionTemplate(ctx, *folder.CaptionTemplateID)
	if errors.Is(err, database.ErrNotFound) {
		w.logger.WithQueueItemID(item.ID).WithField("caption_template_id", *folder.CaptionTemplateID).
			Warn("Folder caption template is missing, using default style")
		return nil, nil
	}
	if err != nil {
		return nil, retryable(fmt.Errorf("failed to load caption template: %w", err))
	}
	return template, nil
}

// inVideoCaption asks for a dedicated in-video line. Errors are logged and
// treated as no text so the caller can fall back to other copy.
func (w *Worker) inVideoCaption(ctx context.Context, item *models.QueueItem, title string, settings *models.FolderSettings, template *models.CaptionTemplate) string {
	text, err := w.deps.Content.GenerateInVideoCaption(ctx, item.FilePath, title, settings, template, item.UserID, item.Overrides.Caption)
	metrics.RecordContentGeneration("in_video_caption", err)
	if err != nil {
		w.logger.WithQueueItemID(item.ID).WithError(err).Warn("In-video caption generation failed, falling back")
		return ""
	}
	return strings.TrimSpace(text)
}

func mirrorProgress(ctx context.Context, cache ProgressCache, item *models.QueueItem, logger *logging.Logger) {
	if cache == nil {
		return
	}
	if err := cache.SetProgress(ctx, item); err != nil {
		logger.WithQueueItemID(item.ID).WithError(err).Debug("Failed to mirror progress to cache")
	}
}

func checkStaged(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrStagedFileMissing, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat staged file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrStagedFileMissing, path)
	}
	return nil
}

func deriveTitle(item *models.QueueItem) string {
	name := item.OriginalName
	if name == "" {
		name = filepath.Base(item.FilePath)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func workingExt(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return defaultWorkingExt
}

// resolveTransform applies item override, then folder default, then 1/false
func resolveTransform(item *models.QueueItem, folder *models.Folder) (int, bool) {
	loopCount := 1
	if folder.DefaultLoopCount > 0 {
		loopCount = folder.DefaultLoopCount
	}
	if item.Overrides.LoopCount != nil && *item.Overrides.LoopCount > 0 {
		loopCount = *item.Overrides.LoopCount
	}

	reverse := folder.DefaultReverse
	if item.Overrides.Reverse != nil {
		reverse = *item.Overrides.Reverse
	}
	return loopCount, reverse
}

func wantsCaptions(item *models.QueueItem) bool {
	return item.Overrides.BurnCaptions != nil && *item.Overrides.BurnCaptions
}

func styleSource(template *models.CaptionTemplate, override models.CaptionConfig) captions.StyleSource {
	switch {
	case template != nil:
		return captions.TemplateSource(template)
	case len(override) > 0:
		return captions.ConfigSource(override)
	default:
		return captions.NoStyle()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
