// Package region derives the rectangles the scanner works with from a card detection:
// the sensor-space crop that holds the printed set code and number, and the
// display-space rectangle the overlay is anchored to.
package region

import (
	"card-scanner/pkg/geometry"
)

// TextCrop returns the part of a detected card box expected to contain the set code
// and card number: the rightmost tenth of the box, lower half.
//
// The fractions assume the frame arrives rotated 90° relative to the printed text, as
// a portrait card does on a landscape sensor. Other orientations produce a crop that
// misses the text. The result is clamped to the image and may be empty.
func TextCrop(box geometry.RectInt, imageWidth, imageHeight int) geometry.RectInt {
	widthFraction := 9 * box.Width / 10
	heightFraction := box.Height / 2

	crop := geometry.RectInt{
		X:      box.X + widthFraction,
		Y:      box.Y + heightFraction,
		Width:  box.Width - widthFraction,
		Height: box.Height - heightFraction,
	}
	return crop.Clamp(imageWidth, imageHeight)
}

// ToDisplay maps a sensor-space rectangle into display space. A zero transform is
// treated as the identity.
func ToDisplay(sensor geometry.RectInt, t geometry.AffineTransform) geometry.Rect {
	if t.IsZero() {
		return sensor.ToFloat()
	}
	return t.MapRect(sensor.ToFloat())
}
