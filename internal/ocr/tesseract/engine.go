// Package tesseract recognizes text with Tesseract through gosseract, returning
// the block, line and word hierarchy as ocr.Text.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"card-scanner/internal/cvutil"
	"card-scanner/internal/ocr"
)

// CardChars is the character set printed in the set code and number corner.
const CardChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz/"

// Options configures the engine.
type Options struct {
	// Language is the Tesseract language code, "eng" by default.
	Language string
	// TessdataPrefix is the directory holding <language>.traineddata. Empty
	// uses Tesseract's built-in search path.
	TessdataPrefix string
	// Whitelist restricts recognized characters. Empty disables the restriction.
	Whitelist string
	// MinHeight is the height small crops are upscaled to before recognition.
	MinHeight int
}

// DefaultOptions returns the options used by the scanner.
func DefaultOptions() Options {
	return Options{Language: "eng", Whitelist: CardChars, MinHeight: 150}
}

// Engine implements pipeline.Recognizer. The underlying client is not safe for
// concurrent use, so calls are serialized.
type Engine struct {
	opts Options

	mu     sync.Mutex
	client *gosseract.Client
}

// New creates an engine. A missing language model is not an error here; it is
// reported by Recognize until the model file appears.
func New(opts Options) (*Engine, error) {
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = 150
	}

	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Set codes are not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{opts: opts, client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// Recognize runs OCR over img.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (*ocr.Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	if err := e.modelAvailable(); err != nil {
		return nil, err
	}

	mat := cvutil.ImageToMat(img)
	defer mat.Close()

	processed, scale := preprocess(mat, e.opts.MinHeight)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, errors.New("engine closed")
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if e.opts.Whitelist != "" {
		if err := e.client.SetWhitelist(e.opts.Whitelist); err != nil {
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	var levels [3][]ocr.Box
	for i, level := range []gosseract.PageIteratorLevel{gosseract.RIL_BLOCK, gosseract.RIL_TEXTLINE, gosseract.RIL_WORD} {
		boxes, err := e.client.GetBoundingBoxes(level)
		if err != nil {
			return nil, classify(err)
		}
		levels[i] = toBoxes(boxes, scale)
	}

	return ocr.Assemble(levels[0], levels[1], levels[2]), nil
}

// modelAvailable checks for the traineddata file when the directory is known.
func (e *Engine) modelAvailable() error {
	if e.opts.TessdataPrefix == "" {
		return nil
	}
	path := filepath.Join(e.opts.TessdataPrefix, e.opts.Language+".traineddata")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ocr.ErrModelUnavailable, path)
	}
	return nil
}

// classify maps Tesseract initialization failures to ocr.ErrModelUnavailable.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "initialize") || strings.Contains(msg, "traineddata") {
		return fmt.Errorf("%w: %v", ocr.ErrModelUnavailable, err)
	}
	return fmt.Errorf("OCR failed: %w", err)
}

func toBoxes(boxes []gosseract.BoundingBox, scale float64) []ocr.Box {
	out := make([]ocr.Box, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, ocr.Box{
			Bounds:     unscale(b.Box, scale),
			Text:       b.Word,
			Confidence: b.Confidence,
		})
	}
	return out
}

func unscale(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale), int(float64(r.Max.Y)/scale),
	)
}

// preprocess upscales small crops and binarizes them to dark text on a light
// background. It returns the scale factor applied.
func preprocess(region gocv.Mat, minHeight int) (gocv.Mat, float64) {
	h := region.Rows()

	scale := 1.0
	var scaled gocv.Mat
	if h < minHeight {
		scale = float64(minHeight) / float64(h)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	// Otsu's threshold for clean text/background separation
	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Tesseract expects dark text on light background.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result, scale
}
