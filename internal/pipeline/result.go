package pipeline

import "errors"

// Outcome classifies how a pipeline run ended
type Outcome string

// Outcome constants
const (
	// OutcomeCompleted means the item was captioned, stored and marked completed
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the item was marked failed; redelivery will not help
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means there was nothing to do: the item is gone, already
	// terminal, or owned by another run
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRetry means the store could not be reached to load or persist
	// state; the item is left as it was for redelivery
	OutcomeRetry Outcome = "retry"
)

// Pipeline errors
var (
	ErrFolderNotFound    = errors.New("Folder not found")
	ErrStagedFileMissing = errors.New("staged file not found")
)

// Result is what a pipeline run reports back to the harness
type Result struct {
	Outcome       Outcome
	QueueItemID   string
	MediaUploadID string
	Err           error
}

// retryableError marks infrastructure failures that should not fail the item
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}
