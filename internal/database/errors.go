package database

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrStaleQueueItem is returned when a queue item changed status underneath an update
	ErrStaleQueueItem = errors.New("queue item status changed concurrently")
)
