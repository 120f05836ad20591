// Package detect ranks card-shaped quadrilaterals found in a frame. The OpenCV
// contour extraction lives in the contour subpackage; this package holds the
// geometry that decides which outlines are cards.
package detect

import (
	"math"
	"sort"

	"card-scanner/internal/pipeline"
	"card-scanner/pkg/geometry"
)

// CardAspect is the width/height ratio of a standard 63×88 mm trading card.
const CardAspect = 63.0 / 88.0

// Label is attached to every detection.
const Label = "card"

// Options tunes candidate filtering.
type Options struct {
	// MinAreaFraction and MaxAreaFraction bound the outline area relative to the
	// frame area.
	MinAreaFraction float64
	MaxAreaFraction float64
	// AspectTolerance is the allowed relative deviation from CardAspect, in
	// either orientation.
	AspectTolerance float64
	// MaxResults caps the number of detections returned. Zero means no cap.
	MaxResults int
}

// DefaultOptions returns options suited to a handheld card filling a fair part of
// the frame.
func DefaultOptions() Options {
	return Options{
		MinAreaFraction: 0.05,
		MaxAreaFraction: 0.95,
		AspectTolerance: 0.25,
		MaxResults:      3,
	}
}

// Candidate is a simplified outline found in the frame.
type Candidate struct {
	Points []geometry.Point2D
	Area   float64
}

// Rank filters candidates to card-like quadrilaterals and returns them as
// detections, best first.
func Rank(cands []Candidate, imageWidth, imageHeight int, opts Options) []pipeline.Detection {
	imgArea := float64(imageWidth * imageHeight)
	if imgArea <= 0 {
		return nil
	}

	var out []pipeline.Detection
	for _, c := range cands {
		if len(c.Points) < 4 || len(c.Points) > 6 {
			continue
		}
		frac := c.Area / imgArea
		if frac < opts.MinAreaFraction || frac > opts.MaxAreaFraction {
			continue
		}

		box := geometry.BoundingBox(c.Points).Round().Clamp(imageWidth, imageHeight)
		if box.Empty() {
			continue
		}
		dev := AspectDeviation(float64(box.Width), float64(box.Height))
		if dev > opts.AspectTolerance {
			continue
		}

		// Larger, squarer-to-card outlines win.
		score := frac * (1 - dev)
		out = append(out, pipeline.Detection{Box: box, Score: score, Label: Label})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// AspectDeviation returns the relative difference between w/h and the card aspect
// ratio, taking whichever orientation fits better.
func AspectDeviation(w, h float64) float64 {
	if w <= 0 || h <= 0 {
		return math.Inf(1)
	}
	r := w / h
	if r > 1 {
		r = 1 / r
	}
	return math.Abs(r-CardAspect) / CardAspect
}

// OrderCorners orders corner points in a consistent manner: TL, TR, BR, BL.
func OrderCorners(corners []geometry.Point2D) []geometry.Point2D {
	if len(corners) != 4 {
		return corners
	}

	sorted := make([]geometry.Point2D, 4)
	copy(sorted, corners)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Y < sorted[j].Y
	})

	topPair := sorted[:2]
	bottomPair := sorted[2:]

	sort.Slice(topPair, func(i, j int) bool {
		return topPair[i].X < topPair[j].X
	})
	sort.Slice(bottomPair, func(i, j int) bool {
		return bottomPair[i].X < bottomPair[j].X
	})

	return []geometry.Point2D{
		topPair[0],    // TL
		topPair[1],    // TR
		bottomPair[1], // BR
		bottomPair[0], // BL
	}
}
