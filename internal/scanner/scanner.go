// Package scanner assembles the detector, recognizer and lookup client from
// configuration so every front end builds the same pipeline.
package scanner

import (
	"fmt"
	"io"
	"log/slog"

	"card-scanner/internal/config"
	"card-scanner/internal/detect"
	"card-scanner/internal/detect/contour"
	"card-scanner/internal/lookup"
	"card-scanner/internal/ocr/gemini"
	"card-scanner/internal/ocr/tesseract"
	"card-scanner/internal/pipeline"
)

// NewDetector builds the OpenCV card detector.
func NewDetector(cfg config.Detector) pipeline.Detector {
	opts := detect.DefaultOptions()
	if cfg.MinAreaFraction > 0 {
		opts.MinAreaFraction = cfg.MinAreaFraction
	}
	if cfg.MaxAreaFraction > 0 {
		opts.MaxAreaFraction = cfg.MaxAreaFraction
	}
	if cfg.AspectTolerance > 0 {
		opts.AspectTolerance = cfg.AspectTolerance
	}
	return contour.New(opts)
}

// NewRecognizer builds the configured OCR engine. The returned closer releases
// engine resources.
func NewRecognizer(cfg config.OCR) (pipeline.Recognizer, io.Closer, error) {
	switch cfg.Engine {
	case "gemini":
		eng := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		return eng, eng, nil
	case "tesseract", "":
		opts := tesseract.DefaultOptions()
		if cfg.Language != "" {
			opts.Language = cfg.Language
		}
		if cfg.Whitelist != "" {
			opts.Whitelist = cfg.Whitelist
		}
		opts.TessdataPrefix = cfg.TessdataPrefix
		eng, err := tesseract.New(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
		return eng, eng, nil
	default:
		return nil, nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

// NewLookup builds the lookup client. Extra options are appended after the
// configured ones.
func NewLookup(cfg config.Lookup, logger *slog.Logger, opts ...lookup.Option) *lookup.Client {
	base := []lookup.Option{lookup.WithLogger(logger.With("component", "lookup"))}
	if cfg.Timeout.Duration > 0 {
		base = append(base, lookup.WithTimeout(cfg.Timeout.Duration))
	}
	return lookup.New(cfg.BaseURL, append(base, opts...)...)
}
