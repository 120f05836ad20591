package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntClamp(t *testing.T) {
	cases := []struct {
		name string
		in   RectInt
		want RectInt
	}{
		{"inside", RectInt{X: 10, Y: 10, Width: 20, Height: 20}, RectInt{X: 10, Y: 10, Width: 20, Height: 20}},
		{"overhang", RectInt{X: 90, Y: -5, Width: 20, Height: 20}, RectInt{X: 90, Y: 0, Width: 10, Height: 15}},
		{"outside", RectInt{X: 200, Y: 200, Width: 5, Height: 5}, RectInt{X: 100, Y: 100, Width: 0, Height: 0}},
		{"negative size", RectInt{X: 50, Y: 50, Width: -10, Height: -3}, RectInt{X: 50, Y: 50, Width: 0, Height: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Clamp(100, 100))
		})
	}
}

func TestMapRectRotation(t *testing.T) {
	// 90° clockwise in a y-down frame of height 100: (x, y) -> (100-y, x)
	rot := AffineTransform{A: 0, B: -1, TX: 100, C: 1, D: 0, TY: 0}
	got := rot.MapRect(NewRect(10, 20, 30, 40))
	assert.InDelta(t, 40, got.X, 1e-9)
	assert.InDelta(t, 10, got.Y, 1e-9)
	assert.InDelta(t, 40, got.Width, 1e-9)
	assert.InDelta(t, 30, got.Height, 1e-9)
}

func TestInverseRoundTrip(t *testing.T) {
	tr := Translation(5, -3).Compose(Scale(2, 4))
	inv, ok := tr.Inverse()
	require.True(t, ok)

	p := NewPoint2D(7, 11)
	back := inv.Apply(tr.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestFitAffineRecoversTransform(t *testing.T) {
	want := AffineTransform{A: 0.5, B: 0.1, TX: 12, C: -0.2, D: 1.5, TY: -4}
	src := []Point2D{{0, 0}, {640, 0}, {640, 480}, {0, 480}, {320, 240}}
	dst := make([]Point2D, len(src))
	for i, p := range src {
		dst[i] = want.Apply(p)
	}

	got, err := FitAffine(src, dst)
	require.NoError(t, err)
	assert.InDelta(t, want.A, got.A, 1e-6)
	assert.InDelta(t, want.B, got.B, 1e-6)
	assert.InDelta(t, want.TX, got.TX, 1e-6)
	assert.InDelta(t, want.C, got.C, 1e-6)
	assert.InDelta(t, want.D, got.D, 1e-6)
	assert.InDelta(t, want.TY, got.TY, 1e-6)
}

func TestFitAffineRejectsBadInput(t *testing.T) {
	_, err := FitAffine([]Point2D{{0, 0}, {1, 1}}, []Point2D{{0, 0}, {1, 1}})
	assert.Error(t, err)

	_, err = FitAffine([]Point2D{{0, 0}}, []Point2D{{0, 0}, {1, 1}})
	assert.Error(t, err)
}
