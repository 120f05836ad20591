package pipeline

import (
	"context"

	"card-scanner/internal/camera"
)

// Run analyzes frames from src one at a time until the source is exhausted or ctx
// is cancelled. Frames still queued after cancellation are released unanalyzed.
func (a *Analyzer) Run(ctx context.Context, src camera.Source) error {
	frames := src.Frames(ctx)
	for {
		select {
		case <-ctx.Done():
			drain(frames)
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			a.Analyze(ctx, f)
		}
	}
}

func drain(frames <-chan *camera.Frame) {
	go func() {
		for f := range frames {
			f.Release()
		}
	}()
}
