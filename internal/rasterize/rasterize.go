package rasterize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lecturenotes/internal/config"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/services"
)

// Image is one rendered slide.
type Image struct {
	Index int
	Path  string
	Data  []byte
	MIME  string
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Converter drives the external conversion tools.
type Converter struct {
	soffice  string
	pdftoppm string
	pdfinfo  string
	dpi      int
	run      commandRunner
	logger   *slog.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithCommandRunner injects a custom command runner (primarily for tests).
func WithCommandRunner(r commandRunner) Option {
	return func(c *Converter) {
		if r != nil {
			c.run = r
		}
	}
}

// New builds a Converter from the [rasterize] config section.
func New(cfg config.Rasterize, logger *slog.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Converter{
		soffice:  strings.TrimSpace(cfg.SofficeBinary),
		pdftoppm: strings.TrimSpace(cfg.PdftoppmBinary),
		pdfinfo:  strings.TrimSpace(cfg.PdfinfoBinary),
		dpi:      cfg.DPI,
		run:      defaultCommandRunner,
		logger:   logger.With(logging.String(logging.FieldComponent, "rasterize")),
	}
	if c.soffice == "" {
		c.soffice = "soffice"
	}
	if c.pdftoppm == "" {
		c.pdftoppm = "pdftoppm"
	}
	if c.pdfinfo == "" {
		c.pdfinfo = "pdfinfo"
	}
	if c.dpi <= 0 {
		c.dpi = 110
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var supportedDecks = map[string]bool{
	".pdf":  true,
	".ppt":  true,
	".pptx": true,
	".odp":  true,
	".key":  true,
}

// Supported reports whether the deck's extension can be converted.
func Supported(name string) bool {
	return supportedDecks[strings.ToLower(filepath.Ext(name))]
}

// Convert produces a PDF for deck inside workDir and returns its page count.
// PDFs are used in place.
func (c *Converter) Convert(ctx context.Context, deck, workDir string) (string, int, error) {
	if !Supported(deck) {
		return "", 0, services.Wrap(services.ErrInput, "rasterize", "convert",
			fmt.Sprintf("unsupported deck type %q", filepath.Ext(deck)), nil)
	}
	if _, err := os.Stat(deck); err != nil {
		return "", 0, services.Wrap(services.ErrInput, "rasterize", "convert", "deck not readable", err)
	}
	pdfPath := deck
	if !strings.EqualFold(filepath.Ext(deck), ".pdf") {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return "", 0, services.Wrap(services.ErrResource, "rasterize", "convert", "create work dir", err)
		}
		if _, err := c.run(ctx, c.soffice, "--headless", "--convert-to", "pdf", "--outdir", workDir, deck); err != nil {
			return "", 0, toolError("convert", c.soffice, err)
		}
		base := strings.TrimSuffix(filepath.Base(deck), filepath.Ext(deck))
		pdfPath = filepath.Join(workDir, base+".pdf")
		if _, err := os.Stat(pdfPath); err != nil {
			return "", 0, services.Wrap(services.ErrExternalService, "rasterize", "convert", "converter produced no pdf", err)
		}
	}
	pages, err := c.PageCount(ctx, pdfPath)
	if err != nil {
		return "", 0, err
	}
	c.logger.Debug("deck converted",
		logging.String("pdf", pdfPath),
		logging.Int("pages", pages),
	)
	return pdfPath, pages, nil
}

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// PageCount reads the page count from pdfinfo output.
func (c *Converter) PageCount(ctx context.Context, pdfPath string) (int, error) {
	out, err := c.run(ctx, c.pdfinfo, pdfPath)
	if err != nil {
		return 0, toolError("page count", c.pdfinfo, err)
	}
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return 0, services.Wrap(services.ErrInput, "rasterize", "page count", "pdf reports no page count", nil)
	}
	pages, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, services.Wrap(services.ErrInput, "rasterize", "page count", "invalid page count", err)
	}
	return pages, nil
}

var pageSuffix = regexp.MustCompile(`-(\d+)\.png$`)

// Rasterize renders every page of pdfPath as PNG under workDir/slides.
func (c *Converter) Rasterize(ctx context.Context, pdfPath, workDir string) ([]Image, error) {
	outDir := filepath.Join(workDir, "slides")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrResource, "rasterize", "render", "create slides dir", err)
	}
	prefix := filepath.Join(outDir, "slide")
	if _, err := c.run(ctx, c.pdftoppm, "-png", "-r", strconv.Itoa(c.dpi), pdfPath, prefix); err != nil {
		return nil, toolError("render", c.pdftoppm, err)
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob slides: %w", err)
	}
	type page struct {
		number int
		path   string
	}
	pages := make([]page, 0, len(matches))
	for _, path := range matches {
		m := pageSuffix.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{number: n, path: path})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })

	images := make([]Image, 0, len(pages))
	for i, p := range pages {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return nil, services.Wrap(services.ErrResource, "rasterize", "render", "read slide image", err)
		}
		images = append(images, Image{Index: i, Path: p.path, Data: data, MIME: "image/png"})
	}
	if len(images) == 0 {
		return nil, services.Wrap(services.ErrInput, "rasterize", "render", "no slide images produced", nil)
	}
	return images, nil
}

func toolError(op, binary string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, "rasterize", op, binary+" not found in PATH", err)
	}
	return services.Wrap(services.ErrExternalService, "rasterize", op, binary+" failed", err)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
