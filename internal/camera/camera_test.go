package camera

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/pkg/geometry"
)

func TestFrameReleaseOnce(t *testing.T) {
	calls := 0
	f := NewFrame(image.NewRGBA(image.Rect(0, 0, 4, 4)), 0, func() { calls++ })

	assert.False(t, f.Released())
	f.Release()
	f.Release()
	f.Release()
	assert.Equal(t, 1, calls)
	assert.True(t, f.Released())
}

func TestFrameEmpty(t *testing.T) {
	var nilFrame *Frame
	assert.True(t, nilFrame.Empty())
	nilFrame.Release()

	assert.True(t, NewFrame(nil, 0, nil).Empty())
	assert.False(t, NewFrame(image.NewGray(image.Rect(0, 0, 1, 1)), 0, nil).Empty())
}

func TestRotateAndCropSizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	crop := geometry.RectInt{X: 600, Y: 300, Width: 30, Height: 100}

	tests := []struct {
		rotation int
		w, h     int
	}{
		{0, 30, 100},
		{90, 100, 30},
		{180, 30, 100},
		{270, 100, 30},
		{-90, 100, 30},
	}
	for _, tt := range tests {
		out, err := RotateAndCrop(img, tt.rotation, crop)
		require.NoError(t, err)
		assert.Equal(t, tt.w, out.Bounds().Dx(), "rotation %d", tt.rotation)
		assert.Equal(t, tt.h, out.Bounds().Dy(), "rotation %d", tt.rotation)
	}

	_, err := RotateAndCrop(img, 45, crop)
	require.ErrorIs(t, err, ErrUnsupportedRotation)
}

func TestRotateAndCropIsClockwise(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	img.Set(0, 0, red)
	img.Set(1, 0, color.RGBA{B: 255, A: 255})

	out, err := RotateAndCrop(img, 90, geometry.RectInt{Width: 2, Height: 1})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())

	// Clockwise: the left pixel ends up on top.
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestRotateAndCropClampsOutside(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	out, err := RotateAndCrop(img, 0, geometry.RectInt{X: 90, Y: 90, Width: 50, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())
}

func TestDisplayTransformRotated(t *testing.T) {
	tr, err := DisplayTransform(640, 480, 90, 480, 640)
	require.NoError(t, err)

	p := tr.Apply(geometry.NewPoint2D(0, 0))
	assert.InDelta(t, 480, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)

	r := tr.MapRect(geometry.NewRect(0, 0, 10, 20))
	assert.InDelta(t, 460, r.X, 1e-6)
	assert.InDelta(t, 0, r.Y, 1e-6)
	assert.InDelta(t, 20, r.Width, 1e-6)
	assert.InDelta(t, 10, r.Height, 1e-6)
}

func TestDisplayTransformLetterbox(t *testing.T) {
	// 640x480 shown upright in a 320x480 view: scale 0.5, centered vertically.
	tr, err := DisplayTransform(640, 480, 0, 320, 480)
	require.NoError(t, err)

	tl := tr.Apply(geometry.NewPoint2D(0, 0))
	br := tr.Apply(geometry.NewPoint2D(640, 480))
	assert.InDelta(t, 0, tl.X, 1e-6)
	assert.InDelta(t, 120, tl.Y, 1e-6)
	assert.InDelta(t, 320, br.X, 1e-6)
	assert.InDelta(t, 360, br.Y, 1e-6)
}

func TestDisplayTransformInvalid(t *testing.T) {
	_, err := DisplayTransform(0, 480, 0, 100, 100)
	require.Error(t, err)
	_, err = DisplayTransform(640, 480, 30, 100, 100)
	require.ErrorIs(t, err, ErrUnsupportedRotation)
}

func TestReadTIFFRotation(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	// tag, type SHORT, count 1, value 6 (rotate 90 clockwise)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(tiffOrientationTag))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(3))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(6))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))

	rot, err := readTIFFRotation(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 90, rot)

	_, err = readTIFFRotation(bytes.NewReader([]byte("notatiff")))
	require.Error(t, err)
}

func TestStillSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "card.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6))))
	require.NoError(t, os.WriteFile(good, buf.Bytes(), 0o644))
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	var failed []string
	src := NewStillSource([]string{bad, good}, func(p string, err error) { failed = append(failed, p) })

	var frames []*Frame
	for f := range src.Frames(context.Background()) {
		frames = append(frames, f)
	}
	require.Len(t, frames, 1)
	w, h := frames[0].Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	assert.Equal(t, []string{bad}, failed)
	assert.True(t, IsSupportedFormat(good))
	assert.False(t, IsSupportedFormat("x.gif"))
}
