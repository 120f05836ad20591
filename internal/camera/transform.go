package camera

import (
	"fmt"
	"math"

	"card-scanner/pkg/geometry"
)

// DisplayTransform returns the sensor-to-display transform for a view of
// viewW×viewH that shows the image rotated clockwise by rotation degrees, scaled
// to fit and centered.
func DisplayTransform(imageW, imageH, rotation int, viewW, viewH float64) (geometry.AffineTransform, error) {
	if imageW <= 0 || imageH <= 0 || viewW <= 0 || viewH <= 0 {
		return geometry.AffineTransform{}, fmt.Errorf("invalid sizes %dx%d -> %.0fx%.0f", imageW, imageH, viewW, viewH)
	}
	rotation, err := NormalizeRotation(rotation)
	if err != nil {
		return geometry.AffineTransform{}, err
	}

	w, h := float64(imageW), float64(imageH)
	rw, rh := w, h
	if rotation == 90 || rotation == 270 {
		rw, rh = h, w
	}

	scale := math.Min(viewW/rw, viewH/rh)
	offX := (viewW - rw*scale) / 2
	offY := (viewH - rh*scale) / 2

	src := geometry.NewRect(0, 0, w, h).Corners()
	dst := make([]geometry.Point2D, 0, len(src))
	for _, p := range src {
		r := rotatePoint(p, rotation, w, h)
		dst = append(dst, geometry.Point2D{X: r.X*scale + offX, Y: r.Y*scale + offY})
	}

	t, err := geometry.FitAffine(src[:], dst)
	if err != nil {
		return geometry.AffineTransform{}, fmt.Errorf("failed to fit display transform: %w", err)
	}
	return t, nil
}

// rotatePoint maps p in a w×h image to the image rotated clockwise.
func rotatePoint(p geometry.Point2D, rotation int, w, h float64) geometry.Point2D {
	switch rotation {
	case 90:
		return geometry.Point2D{X: h - p.Y, Y: p.X}
	case 180:
		return geometry.Point2D{X: w - p.X, Y: h - p.Y}
	case 270:
		return geometry.Point2D{X: p.Y, Y: w - p.X}
	default:
		return p
	}
}
