package workflow

import (
	"fmt"
	"os"
	"strings"

	"lecturenotes/internal/fileutil"
)

// readCachedTranscript returns the most recent fresh transcription.
func readCachedTranscript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read cached transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeCachedTranscript(path, text string) error {
	if err := fileutil.WriteAtomic(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("replace transcript cache: %w", err)
	}
	return nil
}
