package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory whose entries are pruned by age.
// Pattern filters entry names with filepath.Match; empty matches all.
// Dirs includes subdirectories (removed recursively) in the sweep.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Dirs    bool
	Exclude []string
}

// PruneOlderThan removes entries in targets last modified before now-maxAge
// and returns how many were removed. A non-positive maxAge disables pruning.
func PruneOlderThan(logger *slog.Logger, maxAge time.Duration, targets ...RetentionTarget) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		skip := make(map[string]struct{}, len(target.Exclude))
		for _, path := range target.Exclude {
			if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
				skip[abs] = struct{}{}
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() && !target.Dirs {
				continue
			}
			if pat := strings.TrimSpace(target.Pattern); pat != "" {
				if ok, err := filepath.Match(pat, entry.Name()); err != nil || !ok {
					continue
				}
			}
			path := filepath.Join(dir, entry.Name())
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if _, ok := skip[path]; ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				WarnWithContext(logger, "retention remove failed", "retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check ownership of "+dir),
					String(FieldImpact, "stale entry remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("stale entry pruned", String("path", path), String(FieldEventType, "retention_pruned"))
			}
		}
	}
	return removed
}

// CleanupOldLogs prunes log files older than retentionDays.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	return PruneOlderThan(logger, time.Duration(retentionDays)*24*time.Hour, targets...)
}
