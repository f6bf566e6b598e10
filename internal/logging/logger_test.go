package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/services"
)

func TestNewJSONWritesStructuredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("job queued", logging.String(logging.FieldJobID, "abc"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if entry["msg"] != "job queued" || entry["job_id"] != "abc" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleFormatHoistsComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	noColor := false
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{path}, Color: &noColor})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "runner")
	logger.Info("stage completed", logging.String("stage", "map slides"), logging.Int("progress", 70))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if strings.Count(line, "\n") != 0 {
		t.Fatalf("expected debug line filtered, got %q", line)
	}
	if !strings.Contains(line, "INFO runner: stage completed") {
		t.Fatalf("missing header in %q", line)
	}
	if !strings.Contains(line, `stage="map slides"`) || !strings.Contains(line, "progress=70") {
		t.Fatalf("missing attrs in %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("unexpected color codes in %q", line)
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "transcribe")
	logging.WithContext(ctx, base).Info("hello")

	data, _ := os.ReadFile(path)
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["job_id"] != "job-1" || entry["stage"] != "transcribe" {
		t.Fatalf("context fields missing: %#v", entry)
	}
}

func TestWarnWithContextFillsRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "importance skipped", "importance_failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing %s in %#v", key, entry)
		}
	}
}
