// Package frame holds the pixel buffer model and the perceptual
// frame-difference metric used to decide whether a sampled frame is a new
// slide.
package frame

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// PixelFrame is a rectangular RGBA buffer, 4 bytes per pixel
type PixelFrame struct {
	Width  int
	Height int
	Pix    []uint8
}

// FromImage converts an image into a PixelFrame
func FromImage(img image.Image) *PixelFrame {
	bounds := img.Bounds()

	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return &PixelFrame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    rgba.Pix,
	}
}

// luma computes BT.709 brightness for a pixel starting at offset i
func luma(pix []uint8, i int) float64 {
	return 0.2126*float64(pix[i]) + 0.7152*float64(pix[i+1]) + 0.0722*float64(pix[i+2])
}

// Difference returns the root-mean-square luma difference between two
// equally sized frames. Larger means more different. The alpha channel is
// ignored. It is an error for dimensions to mismatch; within one session all
// frames share the source video's dimensions so this does not occur.
func Difference(a, b *PixelFrame) (float64, error) {
	if a.Width != b.Width || a.Height != b.Height || len(a.Pix) != len(b.Pix) {
		return 0, fmt.Errorf("frame dimensions mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}

	n := a.Width * a.Height
	if n == 0 {
		return 0, fmt.Errorf("empty frame")
	}

	var sum float64
	for i := 0; i < len(a.Pix); i += 4 {
		d := luma(a.Pix, i) - luma(b.Pix, i)
		sum += d * d
	}

	return math.Sqrt(sum / float64(n)), nil
}
