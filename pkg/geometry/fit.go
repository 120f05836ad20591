package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FitAffine computes the affine transform mapping src onto dst in the least-squares
// sense. At least three non-collinear correspondences are required.
func FitAffine(src, dst []Point2D) (AffineTransform, error) {
	if len(src) != len(dst) {
		return AffineTransform{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < 3 {
		return AffineTransform{}, fmt.Errorf("need at least 3 points, got %d", n)
	}

	// [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].X)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return AffineTransform{}, fmt.Errorf("failed to solve affine fit: %w", err)
	}

	t := AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}
	if _, ok := t.Inverse(); !ok {
		return AffineTransform{}, fmt.Errorf("degenerate correspondences")
	}
	return t, nil
}
