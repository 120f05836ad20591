// Package webcam reads frames from a local camera through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"card-scanner/internal/camera"
	"card-scanner/internal/cvutil"
)

// Options selects the capture device and requested frame size.
type Options struct {
	Device   int
	Width    int
	Height   int
	FPS      float64
	Rotation int
}

// Source is a camera.Source over an OpenCV VideoCapture. At most one frame is
// outstanding: the next frame is read only after the previous one is released.
type Source struct {
	opts   Options
	cap    *gocv.VideoCapture
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens the capture device.
func Open(opts Options, logger *slog.Logger) (*Source, error) {
	if _, err := camera.NormalizeRotation(opts.Rotation); err != nil {
		return nil, err
	}
	vc, err := gocv.VideoCaptureDevice(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", opts.Device, err)
	}
	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, opts.FPS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webcam", "device", opts.Device)
	logger.Info("camera opened",
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))

	return &Source{opts: opts, cap: vc, logger: logger}, nil
}

// Frames implements camera.Source.
func (s *Source) Frames(ctx context.Context) <-chan *camera.Frame {
	ch := make(chan *camera.Frame)
	slot := make(chan struct{}, 1)
	slot <- struct{}{}

	go func() {
		defer close(ch)
		mat := gocv.NewMat()
		defer mat.Close()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-slot:
			}

			ok, closed := s.read(&mat)
			if closed {
				return
			}
			if !ok {
				s.logger.Warn("camera read failed")
				return
			}
			if mat.Empty() {
				slot <- struct{}{}
				continue
			}

			img := cvutil.MatToImage(mat)
			seq++
			f := camera.NewFrame(img, s.opts.Rotation, func() { slot <- struct{}{} })
			f.Seq = seq
			f.Timestamp = time.Now()

			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// read grabs the next frame into mat. The lock keeps Close from releasing the
// device mid-read.
func (s *Source) read(mat *gocv.Mat) (ok, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, true
	}
	return s.cap.Read(mat), false
}

// Close releases the capture device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cap.Close()
}
