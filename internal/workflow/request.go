package workflow

import (
	"os"
	"path/filepath"
	"strings"

	"lecturenotes/internal/rasterize"
	"lecturenotes/internal/services"
)

// Request describes one submission. WorkDir is the per-job workspace that
// holds the uploads; the runner removes it when the job ends.
type Request struct {
	AudioPath         string
	DeckPath          string
	Filename          string
	Owner             string
	SkipTranscription bool
	Transcript        string
	WorkDir           string
}

func (r Request) validate(cachePath string) error {
	if strings.TrimSpace(r.WorkDir) == "" {
		return services.Wrap(services.ErrInput, "submit", "validate", "workspace required", nil)
	}
	if err := requireFile(r.DeckPath, "slide deck"); err != nil {
		return err
	}
	if !rasterize.Supported(r.DeckPath) {
		return services.Wrap(services.ErrInput, "submit", "validate",
			"unsupported slide deck type "+filepath.Ext(r.DeckPath), nil)
	}
	if r.SkipTranscription {
		if strings.TrimSpace(r.Transcript) != "" {
			return nil
		}
		if _, err := os.Stat(cachePath); err != nil {
			return services.Wrap(services.ErrInput, "submit", "validate",
				"skip_transcription requires a transcript or a cached transcript", nil)
		}
		return nil
	}
	return requireFile(r.AudioPath, "audio file")
}

func requireFile(path, what string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrInput, "submit", "validate", what+" required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrInput, "submit", "validate", what+" not readable", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return services.Wrap(services.ErrInput, "submit", "validate", what+" is empty", nil)
	}
	return nil
}

// displayName is the filename recorded for history.
func (r Request) displayName() string {
	if name := strings.TrimSpace(r.Filename); name != "" {
		return name
	}
	return filepath.Base(r.DeckPath)
}
