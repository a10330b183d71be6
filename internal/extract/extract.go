// Package extract turns scanned documents into binary page grids.
//
// Image files give a single page. PDFs are read for their embedded page
// scans; when the PDF library cannot decode them the document is rendered
// with pdftoppm instead.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// ErrUnsupportedFormat is returned for files that are neither images nor
// PDFs.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor reads documents from disk.
type Extractor struct {
	// Shade is the gray level at or below which a pixel counts as black.
	Shade uint8
	// Density is the resolution, in DPI, used when rendering PDF pages.
	Density int
	// Fallback enables rendering with pdftoppm when the embedded images
	// cannot be decoded.
	Fallback bool
	Logger   *slog.Logger
}

// New returns an extractor with the default shade and density and the
// pdftoppm fallback enabled.
func New() *Extractor {
	return &Extractor{Shade: imaging.DefaultGrayShade, Density: 200, Fallback: true}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Extract returns the pages of the document at path, in order.
func (e *Extractor) Extract(ctx context.Context, path string) ([]*imaging.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case imaging.IsImageFile(path):
		g, err := imaging.LoadGrid(path, e.Shade)
		if err != nil {
			return nil, err
		}
		return []*imaging.Grid{g}, nil
	case strings.EqualFold(filepath.Ext(path), ".pdf"):
		return e.extractPDF(ctx, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

func (e *Extractor) extractPDF(ctx context.Context, path string) ([]*imaging.Grid, error) {
	log := e.logger().With("file", filepath.Base(path))

	imgs, err := embeddedImages(path)
	if err == nil && len(imgs) == 0 {
		err = errNoImages
	}
	if err != nil {
		if !e.Fallback {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
		log.Debug("embedded images unusable, rendering pages", "reason", err)
		imgs, err = renderPages(ctx, path, e.Density)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
	}

	grids := make([]*imaging.Grid, len(imgs))
	for i, img := range imgs {
		grids[i] = imaging.NewGrid(img, e.Shade)
	}
	log.Debug("pdf pages extracted", "pages", len(grids))
	return grids, nil
}
