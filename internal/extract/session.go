package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/frame"
)

// Session walks a video at a fixed time step and captures each sampled
// frame whose dissimilarity to the previous sample exceeds the threshold.
// A session owns its Source for the duration of the run; two sessions must
// not share one.
type Session struct {
	id     string
	logger zerolog.Logger
	src    frame.Source
	opts   Options

	captured []Captured
}

// NewSession creates an extraction session over a frame source
func NewSession(logger zerolog.Logger, src frame.Source, opts Options) *Session {
	if opts.StepSeconds <= 0 {
		opts.StepSeconds = 2
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}

	id := uuid.New().String()[:8]
	return &Session{
		id:     id,
		logger: logger.With().Str("component", "extract").Str("session", id).Logger(),
		src:    src,
		opts:   opts,
	}
}

// Run executes the extraction walk. The returned slice holds whatever was
// captured, even when an error aborts the walk early; OnComplete fires only
// on a clean finish.
//
// Each sample is compared against the immediately preceding sample, not the
// last captured slide, so gradual drift keeps accumulating captures.
func (s *Session) Run(ctx context.Context, cb Callbacks) ([]Captured, error) {
	duration := s.src.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("source has no duration")
	}

	s.logger.Info().
		Float64("duration", duration).
		Float64("step", s.opts.StepSeconds).
		Float64("threshold", s.opts.Threshold).
		Int("max_frames", s.opts.MaxFrames).
		Msg("starting extraction")

	var prev *frame.Sample

	for step := 0; ; step++ {
		t := float64(step) * s.opts.StepSeconds
		if t > duration {
			break
		}

		if err := ctx.Err(); err != nil {
			return s.captured, err
		}

		cur, err := s.src.RenderAt(ctx, t)
		if err != nil {
			// Raster acquisition failure is fatal to the session; the
			// caller keeps the frames emitted so far.
			return s.captured, fmt.Errorf("extraction aborted at %.3fs: %w", t, err)
		}

		capture := prev == nil
		score := 0.0
		if prev != nil {
			score, err = frame.Difference(prev.Pixels, cur.Pixels)
			if err != nil {
				return s.captured, fmt.Errorf("extraction aborted at %.3fs: %w", t, err)
			}
			capture = score > s.opts.Threshold
		}

		if capture {
			if err := s.emit(cur, t, cb); err != nil {
				return s.captured, err
			}
		}

		// The new sample becomes the comparison baseline whether or not it
		// was captured.
		prev = cur

		if cb.OnProgress != nil {
			cb.OnProgress(int(math.Round(t / duration * 100)))
		}

		s.logger.Debug().
			Float64("t", t).
			Float64("score", score).
			Bool("captured", capture).
			Msg("sampled frame")

		if s.opts.MaxFrames > 0 && len(s.captured) >= s.opts.MaxFrames {
			s.logger.Info().Int("frames", len(s.captured)).Msg("frame cap reached")
			break
		}
	}

	if cb.OnProgress != nil {
		cb.OnProgress(100)
	}
	if cb.OnComplete != nil {
		cb.OnComplete(s.captured)
	}

	s.logger.Info().Int("frames", len(s.captured)).Msg("extraction complete")
	return s.captured, nil
}

// emit encodes the sampled raster as a JPEG slide and hands it to the sink
func (s *Session) emit(sample *frame.Sample, t float64, cb Callbacks) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sample.Image, &jpeg.Options{Quality: s.opts.JPEGQuality}); err != nil {
		return fmt.Errorf("encode frame at %.3fs: %w", t, err)
	}

	c := Captured{
		Index:     len(s.captured),
		Timestamp: t,
		JPEG:      buf.Bytes(),
	}
	s.captured = append(s.captured, c)

	if cb.OnFrame != nil {
		cb.OnFrame(c)
	}
	return nil
}
