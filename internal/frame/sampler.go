package frame

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/ffmpeg"
	"github.com/yimiw/video-to-ppt/pkg/util"
)

// Source is the sampling primitive consumed by calibration and extraction:
// seek to a timestamp and rasterize the frame displayed there. A Source is
// owned by a single session at a time; sampling is strictly sequential.
type Source interface {
	// Duration returns the total playable duration in seconds
	Duration() float64
	// RenderAt seeks to t seconds and rasterizes the current frame
	RenderAt(ctx context.Context, t float64) (*Sample, error)
	Close() error
}

// Sample is one rasterized frame. Pixels is the fixed-size comparison
// raster; Image keeps the full resolution for capture encoding.
type Sample struct {
	Timestamp float64
	Pixels    *PixelFrame
	Image     image.Image
}

// FFmpegSource renders frames by invoking ffmpeg once per seek
type FFmpegSource struct {
	exec   *ffmpeg.Executor
	logger zerolog.Logger

	path         string
	duration     float64
	compareWidth uint
	seekTimeout  time.Duration

	// comparison dimensions, fixed after the first render
	cmpW, cmpH int
}

// SourceOptions configures an FFmpegSource
type SourceOptions struct {
	// CompareWidth is the downscaled raster width used for differencing.
	// Zero compares at source resolution.
	CompareWidth int
	// SeekTimeout bounds each seek-and-rasterize call
	SeekTimeout time.Duration
}

// NewFFmpegSource opens a video file as a frame Source
func NewFFmpegSource(exec *ffmpeg.Executor, logger zerolog.Logger, info *ffmpeg.VideoInfo, opts SourceOptions) (*FFmpegSource, error) {
	if info == nil || info.FilePath == "" {
		return nil, fmt.Errorf("video info is required")
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("video has no duration: %s", info.FilePath)
	}

	if opts.SeekTimeout <= 0 {
		opts.SeekTimeout = 30 * time.Second
	}

	return &FFmpegSource{
		exec:         exec,
		logger:       logger.With().Str("component", "sampler").Logger(),
		path:         info.FilePath,
		duration:     info.Duration.Seconds(),
		compareWidth: uint(opts.CompareWidth),
		seekTimeout:  opts.SeekTimeout,
	}, nil
}

// Duration returns the video duration in seconds
func (s *FFmpegSource) Duration() float64 {
	return s.duration
}

// RenderAt seeks to t seconds and decodes the displayed frame. Seeking
// precision is bounded by the decoder; each call carries its own timeout so
// a stalled seek cannot suspend the session indefinitely.
func (s *FFmpegSource) RenderAt(ctx context.Context, t float64) (*Sample, error) {
	seekCtx, cancel := context.WithTimeout(ctx, s.seekTimeout)
	defer cancel()

	// Seeking at or past the very end yields no frame; pull the seek point
	// just inside the stream instead.
	seekAt := t
	if limit := s.duration - 0.05; seekAt > limit {
		seekAt = limit
		if seekAt < 0 {
			seekAt = 0
		}
	}

	offset := time.Duration(seekAt * float64(time.Second))
	data, err := s.exec.Rasterize(seekCtx, s.path, offset)
	if err != nil {
		return nil, fmt.Errorf("render at %s: %w", util.FormatSeconds(t), err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame at %s: %w", util.FormatSeconds(t), err)
	}

	cmp := img
	if s.compareWidth > 0 && img.Bounds().Dx() > int(s.compareWidth) {
		cmp = resize.Resize(s.compareWidth, 0, img, resize.Bilinear)
	}

	pixels := FromImage(cmp)
	if s.cmpW == 0 {
		s.cmpW, s.cmpH = pixels.Width, pixels.Height
		s.logger.Debug().
			Int("width", pixels.Width).
			Int("height", pixels.Height).
			Msg("comparison dimensions fixed")
	} else if pixels.Width != s.cmpW || pixels.Height != s.cmpH {
		return nil, fmt.Errorf("frame at %s has unexpected dimensions %dx%d, want %dx%d",
			util.FormatSeconds(t), pixels.Width, pixels.Height, s.cmpW, s.cmpH)
	}

	return &Sample{Timestamp: t, Pixels: pixels, Image: img}, nil
}

// Close releases the source. FFmpegSource holds no persistent decoder state.
func (s *FFmpegSource) Close() error {
	return nil
}
