package testsupport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lecturenotes/internal/notifications"
	"lecturenotes/internal/rasterize"
)

// Transcriber returns Text. When Block is non-nil each call waits for it to
// be closed or for ctx to end.
type Transcriber struct {
	Text  string
	Err   error
	Block chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *Transcriber) Transcribe(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// Calls reports how many times Transcribe ran.
func (f *Transcriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Rasterizer reports Pages pages and renders images whose data is
// "slide-N" (1-based).
type Rasterizer struct {
	Pages        int
	Images       int
	ConvertErr   error
	RasterizeErr error
}

func (f *Rasterizer) Convert(ctx context.Context, deck, _ string) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if f.ConvertErr != nil {
		return "", 0, f.ConvertErr
	}
	return deck, f.Pages, nil
}

func (f *Rasterizer) Rasterize(ctx context.Context, pdfPath, workDir string) ([]rasterize.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.RasterizeErr != nil {
		return nil, f.RasterizeErr
	}
	n := f.Images
	if n == 0 {
		n = f.Pages
	}
	images := make([]rasterize.Image, n)
	for i := range images {
		images[i] = rasterize.Image{
			Index: i,
			Path:  fmt.Sprintf("%s/slide-%d.png", workDir, i+1),
			Data:  []byte(fmt.Sprintf("slide-%d", i+1)),
			MIME:  "image/png",
		}
	}
	return images, nil
}

// Captioner looks captions up by image data ("slide-N"). Unknown images get
// "caption of <data>". FailOn makes that image's call fail.
type Captioner struct {
	Captions map[string]string
	FailOn   string
}

func (f *Captioner) Caption(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := string(data)
	if f.FailOn != "" && key == f.FailOn {
		return "", errors.New("caption backend unavailable")
	}
	if text, ok := f.Captions[key]; ok {
		return text, nil
	}
	return "caption of " + key, nil
}

// KeywordEmbedder embeds text as keyword counts over Vocabulary, which gives
// deterministic cosine similarities in tests.
type KeywordEmbedder struct {
	Vocabulary []string
	Err        error

	mu    sync.Mutex
	calls int
}

func (f *KeywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(f.Vocabulary)+1)
		for j, word := range f.Vocabulary {
			vec[j] = float32(strings.Count(lower, strings.ToLower(word)))
		}
		// bias term keeps texts without any keyword off the zero vector
		vec[len(f.Vocabulary)] = 0.01
		out[i] = vec
	}
	return out, nil
}

// Calls reports how many Embed calls ran.
func (f *KeywordEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Generator writes a four-section note naming the caption. FailOn makes
// calls whose caption contains it fail.
type Generator struct {
	FailOn string

	mu       sync.Mutex
	captions []string
}

func (f *Generator) GenerateNote(ctx context.Context, caption string, segments []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.captions = append(f.captions, caption)
	f.mu.Unlock()
	if f.FailOn != "" && strings.Contains(caption, f.FailOn) {
		return "", errors.New("note backend unavailable")
	}
	chart := "Omitted"
	if strings.Contains(strings.ToLower(caption), "chart") {
		chart = "A chart is shown."
	}
	return fmt.Sprintf(`1. Concise Summary Notes
Summary of %s with %d segments.
2. Bullet Point Notes
- point one
3. Keyword Notes
keyword: meaning
4. Chart/Table Summary
%s
`, caption, len(segments), chart), nil
}

// Captions returns the captions seen so far, in call order.
func (f *Generator) Captions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.captions...)
}

// Classifier flags the keys listed in Flag.
type Classifier struct {
	Flag map[string]string
	Err  error
}

func (f *Classifier) ClassifyImportance(ctx context.Context, segments map[string]string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[string]string)
	for key := range segments {
		if reason, ok := f.Flag[key]; ok {
			out[key] = reason
		}
	}
	return out, nil
}

// Notifier records job alerts.
type Notifier struct {
	mu        sync.Mutex
	completed []notifications.JobSummary
	failed    []string
}

func (f *Notifier) NotifyJobCompleted(_ context.Context, job notifications.JobSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, job)
	return nil
}

func (f *Notifier) NotifyJobFailed(_ context.Context, job notifications.JobSummary, stage string, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job.JobID+":"+stage)
	return nil
}

func (f *Notifier) TestNotification(context.Context) error { return nil }

// Completed returns the summaries of completed-job alerts.
func (f *Notifier) Completed() []notifications.JobSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.JobSummary(nil), f.completed...)
}

// Failed returns "jobID:stage" for each failure alert.
func (f *Notifier) Failed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.failed...)
}
