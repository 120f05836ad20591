package pipeline

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/camera"
)

type sliceSource struct {
	frames []*camera.Frame
}

func (s *sliceSource) Frames(ctx context.Context) <-chan *camera.Frame {
	ch := make(chan *camera.Frame, len(s.frames))
	for _, f := range s.frames {
		ch <- f
	}
	close(ch)
	return ch
}

func (s *sliceSource) Close() error { return nil }

func TestRunAnalyzesEveryFrame(t *testing.T) {
	released := 0
	src := &sliceSource{}
	for i := 0; i < 5; i++ {
		f := camera.NewFrame(image.NewRGBA(image.Rect(0, 0, 64, 48)), 0, func() { released++ })
		f.Seq = uint64(i + 1)
		src.frames = append(src.frames, f)
	}

	var seqs []uint64
	det := &fakeDetector{}
	a, err := NewAnalyzer(Config{
		Detector:   det,
		Recognizer: &fakeRecognizer{},
		OnOutcome:  func(o Outcome) { seqs = append(seqs, o.Seq) },
	})
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background(), src))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
	assert.Equal(t, 5, det.calls)
	assert.Equal(t, 5, released)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := NewAnalyzer(Config{Detector: &fakeDetector{}, Recognizer: &fakeRecognizer{}})
	require.NoError(t, err)

	never := make(chan *camera.Frame)
	err = a.Run(ctx, sourceFunc(func(context.Context) <-chan *camera.Frame { return never }))
	require.ErrorIs(t, err, context.Canceled)
}

type sourceFunc func(ctx context.Context) <-chan *camera.Frame

func (f sourceFunc) Frames(ctx context.Context) <-chan *camera.Frame { return f(ctx) }
func (f sourceFunc) Close() error                                    { return nil }
