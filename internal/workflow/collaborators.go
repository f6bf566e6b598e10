package workflow

import (
	"context"

	"lecturenotes/internal/history"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/notifications"
	"lecturenotes/internal/rasterize"
)

// Transcriber converts a lecture recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Rasterizer turns a deck into a PDF and renders its pages.
type Rasterizer interface {
	Convert(ctx context.Context, deck, workDir string) (pdfPath string, pages int, err error)
	Rasterize(ctx context.Context, pdfPath, workDir string) ([]rasterize.Image, error)
}

// Captioner describes a slide image.
type Captioner interface {
	Caption(ctx context.Context, data []byte, mime string) (string, error)
}

// ImportanceClassifier flags important transcript segments. The input maps
// segment keys to text; the output maps flagged keys to a reason.
type ImportanceClassifier interface {
	ClassifyImportance(ctx context.Context, segments map[string]string) (map[string]string, error)
}

// Collaborators bundles the runner's external dependencies. Importance,
// History and Notifier are optional.
type Collaborators struct {
	Transcriber Transcriber
	Rasterizer  Rasterizer
	Captioner   Captioner
	Embedder    mapping.Embedder
	Generator   notes.Generator
	Importance  ImportanceClassifier
	History     history.Store
	Notifier    notifications.Service
}
