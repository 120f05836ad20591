// Package pipeline runs the per-frame card scanning chain: detect, crop, recognize,
// parse, resolve and overlay. Each frame is released exactly once whichever stage
// ends its analysis.
package pipeline

import (
	"context"
	"errors"
	"image"

	"card-scanner/internal/card"
	"card-scanner/internal/ocr"
	"card-scanner/pkg/geometry"
)

// ErrNoImage is reported for frames without pixels.
var ErrNoImage = errors.New("frame has no image")

// ModelUnavailableMessage is shown while the recognizer's model is missing.
const ModelUnavailableMessage = "Waiting for text recognition model to be downloaded"

// Detection is one object found in a frame, in sensor coordinates.
type Detection struct {
	Box   geometry.RectInt
	Score float64
	Label string
}

// Detector locates cards in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Recognizer extracts structured text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (*ocr.Text, error)
}

// Resolver starts an asynchronous lookup and reports whether a request was
// issued. lookup.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, id card.Identifier) bool
}

// Notifier shows a short, non-fatal message to the user.
type Notifier interface {
	Notify(message string)
}

// Opener opens a URL in an external viewer.
type Opener interface {
	Open(url string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) { f(message) }

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

// Open implements Opener.
func (f OpenerFunc) Open(url string) error { return f(url) }
