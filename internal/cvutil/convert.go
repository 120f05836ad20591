// Package cvutil converts between Go images and OpenCV matrices.
package cvutil

import (
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// ImageToMat converts an image to a BGR Mat. The caller must Close it.
func ImageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	parallelRows(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				// OpenCV uses BGR format
				mat.SetUCharAt(y, x*3+0, uint8(b>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})
	return mat
}

// MatToImage converts a BGR or grayscale Mat to an RGBA image.
func MatToImage(mat gocv.Mat) *image.RGBA {
	h := mat.Rows()
	w := mat.Cols()
	gray := mat.Channels() == 1

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride

	parallelRows(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			rowOffset := y * stride
			for x := 0; x < w; x++ {
				pix := rowOffset + x*4
				if gray {
					v := mat.GetUCharAt(y, x)
					img.Pix[pix+0], img.Pix[pix+1], img.Pix[pix+2] = v, v, v
				} else {
					img.Pix[pix+0] = mat.GetUCharAt(y, x*3+2)
					img.Pix[pix+1] = mat.GetUCharAt(y, x*3+1)
					img.Pix[pix+2] = mat.GetUCharAt(y, x*3+0)
				}
				img.Pix[pix+3] = 255
			}
		}
	})
	return img
}

// parallelRows splits [0,height) into horizontal stripes, one per CPU.
func parallelRows(height int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := min(startY+rowsPerWorker, height)
		if startY >= height {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}
