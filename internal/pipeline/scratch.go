package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratch owns the files a single pipeline run may leave behind: the staged
// upload and a per-item working directory.
type scratch struct {
	dir    string
	staged string
}

func workDir(tempDir, itemID string) string {
	return filepath.Join(tempDir, "queue-items", itemID)
}

func newScratch(tempDir, itemID, stagedPath string) *scratch {
	return &scratch{
		dir:    workDir(tempDir, itemID),
		staged: stagedPath,
	}
}

// WorkingFile reserves a fresh path inside the working directory
func (s *scratch) WorkingFile(ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return filepath.Join(s.dir, uuid.New().String()+ext), nil
}

// Remove deletes one working file, ignoring files that are already gone
func (s *scratch) Remove(path string) error {
	return removeIfExists(path)
}

// Release deletes the staged upload and the whole working directory
func (s *scratch) Release() error {
	var errs []error
	if s.staged != "" {
		if err := removeIfExists(s.staged); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove working directory: %w", err))
	}
	return errors.Join(errs...)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
