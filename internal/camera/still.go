package camera

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
)

// tiffOrientationTag is the TIFF/EXIF Orientation tag.
const tiffOrientationTag = 274

// LoadStill reads an image file into a frame. TIFF files carrying an Orientation
// tag get the matching rotation; other formats are assumed upright.
func LoadStill(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	rotation := 0
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tiff" || ext == ".tif" {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if r, err := readTIFFRotation(file); err == nil {
				rotation = r
			}
		}
	}

	return NewFrame(img, rotation, nil), nil
}

// readTIFFRotation reads the Orientation tag from the first IFD and converts it to
// a clockwise rotation. Mirrored orientations are treated as their unmirrored
// counterpart.
func readTIFFRotation(r io.ReadSeeker) (int, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(r, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}
		if byteOrder.Uint16(entry[0:2]) != tiffOrientationTag {
			continue
		}
		// SHORT values are left-justified in the value field.
		switch byteOrder.Uint16(entry[8:10]) {
		case 1, 2:
			return 0, nil
		case 3, 4:
			return 180, nil
		case 5, 6:
			return 90, nil
		case 7, 8:
			return 270, nil
		default:
			return 0, fmt.Errorf("invalid orientation")
		}
	}
	return 0, fmt.Errorf("no orientation tag found")
}

// SupportedFormats returns the list of supported still image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// StillSource serves a fixed list of image files as frames.
type StillSource struct {
	paths   []string
	onError func(path string, err error)
}

// NewStillSource creates a source over paths. onError, if non-nil, receives files
// that could not be loaded; they are skipped.
func NewStillSource(paths []string, onError func(path string, err error)) *StillSource {
	return &StillSource{paths: paths, onError: onError}
}

// Frames implements Source.
func (s *StillSource) Frames(ctx context.Context) <-chan *Frame {
	ch := make(chan *Frame)
	go func() {
		defer close(ch)
		for i, p := range s.paths {
			f, err := LoadStill(p)
			if err != nil {
				if s.onError != nil {
					s.onError(p, err)
				}
				continue
			}
			f.Seq = uint64(i + 1)
			select {
			case ch <- f:
			case <-ctx.Done():
				f.Release()
				return
			}
		}
	}()
	return ch
}

// Close implements Source.
func (s *StillSource) Close() error { return nil }
