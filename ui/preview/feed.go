package preview

import (
	"context"
	"log/slog"
	"time"

	"card-scanner/internal/camera"
)

// DefaultStillHold is how long live frames are held back after a still image is
// pushed, so the still and its overlay stay on screen.
const DefaultStillHold = 5 * time.Second

// Feed wraps a frame source so every frame is shown upright in the preview and
// carries the sensor-to-preview transform the overlay is drawn in. Still images
// pushed into the feed travel the same channel as live frames, so one consumer
// analyzes them one at a time.
type Feed struct {
	src     camera.Source
	preview *Preview
	logger  *slog.Logger

	stills chan *camera.Frame
	hold   time.Duration
}

// NewFeed creates a feed for p. src may be nil when only still images are
// scanned.
func NewFeed(src camera.Source, p *Preview, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		src:     src,
		preview: p,
		logger:  logger.With("component", "preview"),
		stills:  make(chan *camera.Frame, 1),
		hold:    DefaultStillHold,
	}
}

// SetStillHold changes how long live frames are dropped after a still.
func (f *Feed) SetStillHold(d time.Duration) {
	f.hold = d
}

// Push queues a still frame ahead of the live source. It returns false and
// releases fr when a still is already waiting.
func (f *Feed) Push(fr *camera.Frame) bool {
	select {
	case f.stills <- fr:
		return true
	default:
		fr.Release()
		return false
	}
}

// Frames implements camera.Source. The channel closes when ctx is done or the
// live source runs out.
func (f *Feed) Frames(ctx context.Context) <-chan *camera.Frame {
	out := make(chan *camera.Frame)
	var in <-chan *camera.Frame
	if f.src != nil {
		in = f.src.Frames(ctx)
	}
	go func() {
		defer close(out)
		defer f.dropStills()

		var holdUntil time.Time
		for {
			var fr *camera.Frame
			select {
			case <-ctx.Done():
				return
			case fr = <-f.stills:
				holdUntil = time.Now().Add(f.hold)
			case live, ok := <-in:
				if !ok {
					return
				}
				if time.Now().Before(holdUntil) {
					live.Release()
					continue
				}
				fr = live
			}

			Show(f.preview, fr, f.logger)
			select {
			case out <- fr:
			case <-ctx.Done():
				fr.Release()
				return
			}
		}
	}()
	return out
}

func (f *Feed) dropStills() {
	for {
		select {
		case fr := <-f.stills:
			fr.Release()
		default:
			return
		}
	}
}

// Show displays fr upright in p and sets fr.Transform to the sensor-to-preview
// mapping. The transform is left zero while p has no size yet.
func Show(p *Preview, fr *camera.Frame, logger *slog.Logger) {
	if fr.Empty() {
		return
	}
	upright, err := camera.Upright(fr.Image, fr.Rotation)
	if err != nil {
		logger.Warn("cannot display frame", "seq", fr.Seq, "error", err)
		return
	}
	p.SetFrame(upright)

	w, h := fr.Size()
	vw, vh := p.ViewSize()
	if vw <= 0 || vh <= 0 {
		return
	}
	t, err := camera.DisplayTransform(w, h, fr.Rotation, vw, vh)
	if err != nil {
		logger.Debug("no display transform", "seq", fr.Seq, "error", err)
		return
	}
	fr.Transform = t
}

// Close implements camera.Source.
func (f *Feed) Close() error {
	if f.src == nil {
		return nil
	}
	return f.src.Close()
}
