package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// Runner runs one queue item through the pipeline
type Runner interface {
	Run(ctx context.Context, itemID string) Result
}

// Harness adapts a Runner to the job runtime. Handled failures and panics
// both end in TerminalFailure; only infrastructure retries are returned as
// errors for redelivery.
type Harness struct {
	runner   Runner
	store    ItemStore
	progress ProgressCache
	tempDir  string
	logger   *logging.Logger
}

// NewHarness creates a harness around runner
func NewHarness(runner Runner, store ItemStore, progress ProgressCache, tempDir string, logger *logging.Logger) *Harness {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Harness{
		runner:   runner,
		store:    store,
		progress: progress,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Handle processes one delivery of itemID
func (h *Harness) Handle(ctx context.Context, itemID string) (err error) {
	start := time.Now()
	metrics.QueueItemsInProgress.Inc()
	defer metrics.QueueItemsInProgress.Dec()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Errorf("pipeline panic: %v", r)
		metrics.RecordError("pipeline", "panic")
		metrics.RecordOutcome(string(OutcomeFailed), time.Since(start).Seconds())
		h.logger.WithQueueItemID(itemID).
			WithField("stack", string(debug.Stack())).
			ErrorWithErr("Pipeline panicked", cause)

		h.TerminalFailure(ctx, itemID, cause)
		err = nil
	}()

	res := h.runner.Run(ctx, itemID)
	metrics.RecordOutcome(string(res.Outcome), time.Since(start).Seconds())

	switch res.Outcome {
	case OutcomeRetry:
		if res.Err == nil {
			return errors.New("pipeline requested retry")
		}
		return res.Err
	case OutcomeFailed:
		h.TerminalFailure(ctx, itemID, res.Err)
	}
	return nil
}

// TerminalFailure guarantees the item ends in a terminal state and releases
// its scratch files. It is safe to call more than once.
func (h *Harness) TerminalFailure(ctx context.Context, itemID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	logger := h.logger.WithQueueItemID(itemID)

	item, err := h.store.GetQueueItem(ctx, itemID)
	if err != nil {
		logger.WithError(err).Error("Terminal failure could not load queue item")
		return
	}

	if !item.IsTerminal() {
		message := "processing failed"
		if cause != nil {
			message = cause.Error()
		}

		prev, err := item.MarkAsFailed(message)
		if err != nil {
			logger.WithError(err).Warn("Terminal failure could not transition queue item")
			return
		}
		if err := h.store.UpdateQueueItem(ctx, item, prev); err != nil {
			logger.WithError(err).Error("Terminal failure could not persist queue item")
			return
		}
		mirrorProgress(ctx, h.progress, item, h.logger)
		logger.LogQueueItemEvent(item.ID, "failed", string(models.QueueStatusFailed), map[string]interface{}{
			"error":    message,
			"attempts": item.Attempts,
		})
	}

	if err := newScratch(h.tempDir, item.ID, item.FilePath).Release(); err != nil {
		logger.WithError(err).Warn("Failed to clean up scratch files")
	}
}
