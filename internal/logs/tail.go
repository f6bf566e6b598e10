package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes      = 1024 * 1024
	defaultFollowPoll = 250 * time.Millisecond
)

// Filter keeps lines that mention JobID when set.
type Filter struct {
	JobID string
}

func (f Filter) match(line string) bool {
	if f.JobID == "" {
		return true
	}
	return strings.Contains(line, f.JobID)
}

// Snapshot is the result of reading the tail of a log file. Offset is the
// byte position following the last consumed line and seeds Follow.
type Snapshot struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit matching lines from the end of path. A missing
// file yields an empty snapshot.
func Last(path string, limit int, filter Filter) (Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Snapshot{}, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return Snapshot{Offset: info.Size()}, nil
	}

	window := newRing(limit)
	offset, err := scanLines(file, func(line string) {
		if filter.match(line) {
			window.push(line)
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Lines: window.lines(), Offset: offset}, nil
}

// Follow polls path from offset and hands every new matching line to emit
// until ctx ends. A file that shrinks (rotation, pointer swap) is reread
// from the start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(string)) error {
	if poll <= 0 {
		poll = defaultFollowPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, func(line string) {
			if filter.match(line) {
				emit(line)
			}
		})
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	consumed, err := scanLines(file, fn)
	if err != nil {
		return offset, err
	}
	return offset + consumed, nil
}

// scanLines feeds complete lines to fn and returns the number of bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}

type ring struct {
	buf   []string
	next  int
	count int
}

func newRing(size int) *ring {
	return &ring{buf: make([]string, size)}
}

func (r *ring) push(line string) {
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) lines() []string {
	out := make([]string, r.count)
	start := 0
	if r.count == len(r.buf) {
		start = r.next
	}
	for i := range r.count {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
