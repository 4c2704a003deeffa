package extract

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/yimiw/video-to-ppt/internal/frame"
)

// scriptSource is a synthetic frame source whose pixel content at any
// timestamp is defined by a color script
type scriptSource struct {
	duration float64
	colorAt  func(t float64) color.RGBA
	failAt   func(t float64) error

	renders []float64
}

func (s *scriptSource) Duration() float64 { return s.duration }

func (s *scriptSource) RenderAt(ctx context.Context, t float64) (*frame.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failAt != nil {
		if err := s.failAt(t); err != nil {
			return nil, err
		}
	}
	s.renders = append(s.renders, t)

	c := s.colorAt(t)
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	return &frame.Sample{Timestamp: t, Pixels: frame.FromImage(img), Image: img}, nil
}

func (s *scriptSource) Close() error { return nil }

func constantSource(duration float64) *scriptSource {
	return &scriptSource{
		duration: duration,
		colorAt: func(float64) color.RGBA {
			return color.RGBA{R: 90, G: 90, B: 90, A: 255}
		},
	}
}

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

var errRenderBroken = fmt.Errorf("raster context unavailable")
