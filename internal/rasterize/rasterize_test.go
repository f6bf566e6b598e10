package rasterize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"lecturenotes/internal/config"
	"lecturenotes/internal/services"
)

type fakeTools struct {
	pages int
	calls []string
	fail  map[string]error
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	switch name {
	case "soffice":
		outDir := args[len(args)-2]
		deck := args[len(args)-1]
		base := strings.TrimSuffix(filepath.Base(deck), filepath.Ext(deck))
		return nil, os.WriteFile(filepath.Join(outDir, base+".pdf"), []byte("%PDF"), 0o644)
	case "pdfinfo":
		return []byte(fmt.Sprintf("Title: deck\nPages:          %d\nEncrypted: no\n", f.pages)), nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			path := fmt.Sprintf("%s-%02d.png", prefix, i)
			if err := os.WriteFile(path, []byte(fmt.Sprintf("png-%d", i)), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected tool %s", name)
}

func writeDeck(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("deck"), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestConvertPptxThenRasterizeOrdersPages(t *testing.T) {
	tools := &fakeTools{pages: 12}
	conv := New(config.Rasterize{}, nil, WithCommandRunner(tools.run))
	work := t.TempDir()

	pdf, pages, err := conv.Convert(context.Background(), writeDeck(t, "lecture.pptx"), work)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if pages != 12 {
		t.Fatalf("expected 12 pages, got %d", pages)
	}
	if filepath.Base(pdf) != "lecture.pdf" {
		t.Fatalf("unexpected pdf path %s", pdf)
	}

	images, err := conv.Rasterize(context.Background(), pdf, work)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(images) != 12 {
		t.Fatalf("expected 12 images, got %d", len(images))
	}
	for i, img := range images {
		if img.Index != i {
			t.Fatalf("image %d has index %d", i, img.Index)
		}
		if want := fmt.Sprintf("png-%d", i+1); string(img.Data) != want {
			t.Fatalf("image %d data = %q, want %q", i, img.Data, want)
		}
		if img.MIME != "image/png" {
			t.Fatalf("unexpected mime %q", img.MIME)
		}
	}
}

func TestConvertPDFSkipsSoffice(t *testing.T) {
	tools := &fakeTools{pages: 2}
	conv := New(config.Rasterize{}, nil, WithCommandRunner(tools.run))
	deck := writeDeck(t, "slides.PDF")

	pdf, pages, err := conv.Convert(context.Background(), deck, t.TempDir())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if pdf != deck || pages != 2 {
		t.Fatalf("unexpected result %s %d", pdf, pages)
	}
	for _, call := range tools.calls {
		if call == "soffice" {
			t.Fatal("soffice should not run for pdf input")
		}
	}
}

func TestConvertZeroPages(t *testing.T) {
	tools := &fakeTools{pages: 0}
	conv := New(config.Rasterize{}, nil, WithCommandRunner(tools.run))
	_, pages, err := conv.Convert(context.Background(), writeDeck(t, "empty.pdf"), t.TempDir())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if pages != 0 {
		t.Fatalf("expected 0 pages, got %d", pages)
	}
}

func TestConvertRejectsUnsupportedDeck(t *testing.T) {
	conv := New(config.Rasterize{}, nil, WithCommandRunner((&fakeTools{}).run))
	_, _, err := conv.Convert(context.Background(), writeDeck(t, "notes.txt"), t.TempDir())
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestConvertMissingBinaryIsConfigurationError(t *testing.T) {
	tools := &fakeTools{fail: map[string]error{"soffice": exec.ErrNotFound}}
	conv := New(config.Rasterize{}, nil, WithCommandRunner(tools.run))
	_, _, err := conv.Convert(context.Background(), writeDeck(t, "deck.odp"), t.TempDir())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRasterizeNoImages(t *testing.T) {
	tools := &fakeTools{pages: 0}
	conv := New(config.Rasterize{}, nil, WithCommandRunner(tools.run))
	if _, err := conv.Rasterize(context.Background(), "deck.pdf", t.TempDir()); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}
