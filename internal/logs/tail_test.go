package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lecturenotes/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecturenotes.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	snap, err := logs.Last(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Lines[0] != "b" || snap.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", snap.Lines)
	}
	if snap.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", snap.Offset)
	}
}

func TestLastFiltersByJob(t *testing.T) {
	path := writeLog(t, "job_id=aaa start\njob_id=bbb start\njob_id=aaa done\n")

	snap, err := logs.Last(path, 10, logs.Filter{JobID: "aaa"})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Lines[1] != "job_id=aaa done" {
		t.Fatalf("unexpected lines: %#v", snap.Lines)
	}
}

func TestLastMissingFileIsEmpty(t *testing.T) {
	snap, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 5, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 0 || snap.Offset != 0 {
		t.Fatalf("expected empty snapshot, got %#v", snap)
	}
}

func TestLastSkipsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthr")

	snap, err := logs.Last(path, 5, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Offset != 8 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	snap, err := logs.Last(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu   sync.Mutex
		seen []string
	)
	got := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, snap.Offset, 20*time.Millisecond, logs.Filter{}, func(line string) {
			mu.Lock()
			seen = append(seen, line)
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit appended line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned %v after cancel", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "later" {
		t.Fatalf("unexpected followed lines: %#v", seen)
	}
}

func TestFollowRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "old line one\nold line two\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}

	got := make(chan string, 4)
	go func() {
		_ = logs.Follow(ctx, path, 26, 20*time.Millisecond, logs.Filter{}, func(line string) {
			got <- line
		})
	}()

	select {
	case line := <-got:
		if line != "new" {
			t.Fatalf("expected reread from start, got %q", line)
		}
	case <-ctx.Done():
		t.Fatal("follow did not reread truncated file")
	}
}
