// Package camera defines the frame type handed to the analyzer together with the
// image helpers that prepare frames for recognition and display.
package camera

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"card-scanner/pkg/geometry"
)

// Frame is one camera image plus the metadata needed to interpret it.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	// Image is nil for an empty frame.
	Image image.Image
	// Rotation is the clockwise rotation in degrees (0, 90, 180 or 270) that
	// makes the image upright.
	Rotation int
	// Transform maps sensor coordinates to display coordinates. The zero value
	// means no transform is available.
	Transform geometry.AffineTransform

	release  func()
	once     sync.Once
	released atomic.Bool
}

// NewFrame creates a frame whose release hook runs at most once.
func NewFrame(img image.Image, rotation int, release func()) *Frame {
	return &Frame{
		Timestamp: time.Now(),
		Image:     img,
		Rotation:  rotation,
		release:   release,
	}
}

// Empty reports whether the frame carries no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Image == nil || f.Image.Bounds().Empty()
}

// Size returns the sensor image size.
func (f *Frame) Size() (int, int) {
	if f.Empty() {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Release returns the frame's buffer to its producer. Calling it more than once
// has no further effect.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		f.released.Store(true)
		if f.release != nil {
			f.release()
		}
	})
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f != nil && f.released.Load()
}

// Source produces frames until its context is cancelled or it runs out.
type Source interface {
	// Frames returns a channel that is closed when the source is exhausted or
	// ctx is done. The receiver owns each frame and must release it.
	Frames(ctx context.Context) <-chan *Frame
	Close() error
}
