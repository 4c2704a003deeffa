// Package export writes the captured slide sequence out as a document.
package export

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"

	"github.com/yimiw/video-to-ppt/internal/extract"
)

// Options configures PDF generation
type Options struct {
	// MaxPageWidth caps page width in points; wider slides are downscaled.
	// Zero keeps source dimensions.
	MaxPageWidth int
	// Quality used when a slide is re-encoded after downscaling
	JPEGQuality int
}

// PageCount returns the number of pages a capture set produces. Slides map
// one-to-one onto pages.
func PageCount(slides []extract.Captured) int {
	return len(slides)
}

// WritePDF renders one slide per page, each page sized to its slide at
// 72 dpi, and writes the document to path
func WritePDF(path string, slides []extract.Captured, opts Options) error {
	if len(slides) == 0 {
		return fmt.Errorf("no slides to export")
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}

	var pdf *fpdf.Fpdf

	for i, slide := range slides {
		data := slide.JPEG

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode slide %d: %w", slide.Index, err)
		}
		w, h := float64(cfg.Width), float64(cfg.Height)

		if opts.MaxPageWidth > 0 && cfg.Width > opts.MaxPageWidth {
			data, w, h, err = downscale(data, opts.MaxPageWidth, opts.JPEGQuality)
			if err != nil {
				return fmt.Errorf("downscale slide %d: %w", slide.Index, err)
			}
		}

		if pdf == nil {
			pdf = fpdf.NewCustom(&fpdf.InitType{
				UnitStr: "pt",
				Size:    fpdf.SizeType{Wd: w, Ht: h},
			})
			pdf.SetMargins(0, 0, 0)
			pdf.SetAutoPageBreak(false, 0)
		}

		pdf.AddPageFormat(orientation(w, h), fpdf.SizeType{Wd: w, Ht: h})

		name := fmt.Sprintf("slide-%04d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, w, h, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// downscale re-encodes a slide at the capped width, preserving aspect ratio
func downscale(data []byte, maxWidth, quality int) ([]byte, float64, float64, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}

	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, err
	}

	bounds := resized.Bounds()
	return buf.Bytes(), float64(bounds.Dx()), float64(bounds.Dy()), nil
}

func orientation(w, h float64) string {
	if w >= h {
		return "L"
	}
	return "P"
}
