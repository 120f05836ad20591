package camera

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"card-scanner/pkg/geometry"
)

// ErrUnsupportedRotation is returned for rotations that are not a multiple of 90.
var ErrUnsupportedRotation = errors.New("unsupported rotation")

// NormalizeRotation maps any multiple of 90 degrees into 0, 90, 180 or 270.
func NormalizeRotation(degrees int) (int, error) {
	if degrees%90 != 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedRotation, degrees)
	}
	r := degrees % 360
	if r < 0 {
		r += 360
	}
	return r, nil
}

// RotateAndCrop crops img to crop (sensor coordinates, relative to the image
// origin) and rotates the result clockwise by rotation degrees.
func RotateAndCrop(img image.Image, rotation int, crop geometry.RectInt) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	rotation, err := NormalizeRotation(rotation)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	crop = crop.Clamp(b.Dx(), b.Dy())
	rect := crop.ToImage().Add(b.Min)

	cropped := imaging.Crop(img, rect)

	// imaging rotates counter-clockwise.
	switch rotation {
	case 90:
		return imaging.Rotate270(cropped), nil
	case 180:
		return imaging.Rotate180(cropped), nil
	case 270:
		return imaging.Rotate90(cropped), nil
	default:
		return cropped, nil
	}
}

// Upright returns the whole image rotated clockwise by rotation degrees.
func Upright(img image.Image, rotation int) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	b := img.Bounds()
	return RotateAndCrop(img, rotation, geometry.RectInt{Width: b.Dx(), Height: b.Dy()})
}
