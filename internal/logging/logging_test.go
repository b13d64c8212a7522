package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "Unwritable file path",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "/nonexistent-dir/worker.log",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestNewWithWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept warning")
	logger.Errorf("kept %s", "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["message"] != "kept warning" {
		t.Errorf("unexpected first message %v", entries[0]["message"])
	}
	if entries[1]["message"] != "kept error" {
		t.Errorf("unexpected second message %v", entries[1]["message"])
	}
}

func TestNewWithWriterInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud")

	logger.Debug("dropped")
	logger.Info("kept")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["level"] != "info" {
		t.Fatalf("expected a single info entry, got %v", entries)
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.WithQueueItemID("item-1").Error("nothing")
	logger.LogStage("item-1", "probe", 70, time.Second, errors.New("boom"))
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.
		WithQueueItemID("item-123").
		WithFolderID("folder-9").
		WithUserID("user-7").
		WithWorkerID("worker-1").
		WithFields(map[string]interface{}{
			"attempt": 2,
		}).
		Info("claimed")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	expected := map[string]interface{}{
		"queue_item_id": "item-123",
		"folder_id":     "folder-9",
		"user_id":       "user-7",
		"worker_id":     "worker-1",
		"attempt":       float64(2),
	}
	for k, v := range expected {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestLogQueueItemEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.LogQueueItemEvent("item-123", "completed", "completed", map[string]interface{}{
		"media_upload_id": "media-1",
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["event"] != "completed" || entries[0]["media_upload_id"] != "media-1" {
		t.Errorf("unexpected entry %v", entries[0])
	}
}

func TestLogStage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.LogStage("item-123", "transform", 50, 2*time.Second, nil)
	logger.LogStage("item-123", "probe", 70, time.Second, errors.New("ffprobe failed"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "info" || entries[0]["stage"] != "transform" {
		t.Errorf("unexpected entry %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "ffprobe failed" {
		t.Errorf("unexpected entry %v", entries[1])
	}
}

func TestLogStorageOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.LogStorageOperation("upload", "media", "media/u/f/a.mp4", 1048576, 2*time.Second, nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["bucket"] != "media" {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestLogDatabaseOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.LogDatabaseOperation("get_queue_item", 50*time.Millisecond, nil)
	logger.LogDatabaseOperation("update_queue_item", 50*time.Millisecond, errors.New("conn reset"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected only the failed operation at info level, got %d", len(entries))
	}
	if entries[0]["operation"] != "update_queue_item" {
		t.Errorf("unexpected entry %v", entries[0])
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Errorf("NewDefaultLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewDefaultLogger")
	}
}

func TestNewConsoleLogger(t *testing.T) {
	logger, err := NewConsoleLogger()
	if err != nil {
		t.Errorf("NewConsoleLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewConsoleLogger")
	}
}

func BenchmarkLogWithFields(b *testing.B) {
	logger := NewWithWriter(&bytes.Buffer{}, "info")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithFields(map[string]interface{}{
			"key1": "value1",
			"key2": 123,
		}).Info("benchmark message")
	}
}
