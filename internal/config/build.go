package config

import (
	"context"
	"log/slog"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/extract"
	"github.com/ironsheep/form-scanner/internal/store"
)

// Extractor returns a document reader using the configured shade and PDF
// settings.
func (c Config) Extractor(log *slog.Logger) *extract.Extractor {
	e := extract.New()
	e.Shade = uint8(c.GrayShade)
	e.Density = c.PDFDensity
	e.Fallback = c.PDFFallback
	e.Logger = log
	return e
}

// Decoder returns a page decoder with the configured policies.
func (c Config) Decoder(log *slog.Logger) *detection.Decoder {
	d := detection.NewDecoder()
	d.Params = c.Params()
	d.Logger = log
	return d
}

// OpenStore connects to Postgres when a database URL is set and falls back
// to JSON files in ResultsDir.
func (c Config) OpenStore(ctx context.Context) (store.Store, error) {
	if c.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	fs, err := store.NewFileStore(c.ResultsDir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
