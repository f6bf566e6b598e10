package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lecturenotes/internal/logging"
)

func TestPruneOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	other := filepath.Join(dir, "old.txt")
	staleDir := filepath.Join(dir, "job-1")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(staleDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	past := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{old, other, staleDir} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneOlderThan(nil, 24*time.Hour, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old.log should be gone")
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("old.txt should remain: %v", err)
	}
	if _, err := os.Stat(staleDir); err != nil {
		t.Fatalf("directories are skipped without Dirs: %v", err)
	}

	if removed := logging.PruneOlderThan(nil, 24*time.Hour, logging.RetentionTarget{Dir: dir, Pattern: "job-*", Dirs: true}); removed != 1 {
		t.Fatalf("dir sweep removed = %d, want 1", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh log should remain: %v", err)
	}
}

func TestPruneOlderThanDisabled(t *testing.T) {
	if n := logging.PruneOlderThan(nil, 0, logging.RetentionTarget{Dir: t.TempDir()}); n != 0 {
		t.Fatalf("expected no-op, got %d", n)
	}
}
