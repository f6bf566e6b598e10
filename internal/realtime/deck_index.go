package realtime

import (
	"context"
	"strings"

	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/rasterize"
	"lecturenotes/internal/services"
)

// DeckIndexer builds a caption index over a session's slide deck.
type DeckIndexer interface {
	IndexDeck(ctx context.Context, deckPath, workDir string) (*mapping.Index, error)
}

// Rasterizer renders a deck's pages.
type Rasterizer interface {
	Convert(ctx context.Context, deck, workDir string) (pdfPath string, pages int, err error)
	Rasterize(ctx context.Context, pdfPath, workDir string) ([]rasterize.Image, error)
}

// Captioner describes a slide image.
type Captioner interface {
	Caption(ctx context.Context, data []byte, mime string) (string, error)
}

// CaptionIndexer captions every page of a deck and embeds the captions.
type CaptionIndexer struct {
	Rasterizer Rasterizer
	Captioner  Captioner
	Mapper     *mapping.Mapper
}

func (c CaptionIndexer) IndexDeck(ctx context.Context, deckPath, workDir string) (*mapping.Index, error) {
	pdfPath, _, err := c.Rasterizer.Convert(ctx, deckPath, workDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "realtime", "convert deck", "", err)
	}
	images, err := c.Rasterizer.Rasterize(ctx, pdfPath, workDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "realtime", "rasterize deck", "", err)
	}
	if len(images) == 0 {
		return nil, mapping.ErrNoSlides
	}
	captions := make([]string, len(images))
	for i, img := range images {
		text, err := c.Captioner.Caption(ctx, img.Data, img.MIME)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalService, "realtime", "caption", notes.SlideKey(i), err)
		}
		captions[i] = strings.TrimSpace(text)
	}
	return c.Mapper.Index(ctx, captions)
}
