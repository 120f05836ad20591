// Package contour finds card outlines with OpenCV edge and contour analysis.
package contour

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"card-scanner/internal/cvutil"
	"card-scanner/internal/detect"
	"card-scanner/internal/pipeline"
	"card-scanner/pkg/geometry"
)

// Detector implements pipeline.Detector with Canny edges and contour
// approximation.
type Detector struct {
	opts detect.Options
}

// New creates a detector.
func New(opts detect.Options) *Detector {
	return &Detector{opts: opts}
}

// Detect returns the card-like outlines in img, best first.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]pipeline.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := cvutil.ImageToMat(img)
	defer mat.Close()

	cands := Candidates(mat)
	return detect.Rank(cands, mat.Cols(), mat.Rows(), d.opts), nil
}

// Candidates extracts simplified external contours from a BGR image.
func Candidates(img gocv.Mat) []detect.Candidate {
	// Convert to grayscale
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	// Blur to reduce noise
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	// Dilate to connect edge segments
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{3, 3})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cands []detect.Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)

		epsilon := 0.02 * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)

		pts := make([]geometry.Point2D, 0, approx.Size())
		for j := 0; j < approx.Size(); j++ {
			p := approx.At(j)
			pts = append(pts, geometry.Point2D{X: float64(p.X), Y: float64(p.Y)})
		}
		approx.Close()

		if len(pts) == 4 {
			pts = detect.OrderCorners(pts)
		}
		cands = append(cands, detect.Candidate{Points: pts, Area: area})
	}
	return cands
}
