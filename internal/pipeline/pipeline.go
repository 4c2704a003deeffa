// Package pipeline orchestrates the full conversion: input normalization,
// probing, threshold calibration, keyframe extraction and document export.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/config"
	"github.com/yimiw/video-to-ppt/internal/export"
	"github.com/yimiw/video-to-ppt/internal/extract"
	"github.com/yimiw/video-to-ppt/internal/ffmpeg"
	"github.com/yimiw/video-to-ppt/internal/frame"
	"github.com/yimiw/video-to-ppt/pkg/util"
)

// Stage names reported through Options.OnProgress
const (
	StageNormalize = "normalize"
	StageCalibrate = "calibrate"
	StageExtract   = "extract"
	StageExport    = "export"
)

// Options configures one conversion run
type Options struct {
	// DeclaredType is an optional extension or MIME-type hint for the input
	DeclaredType string
	// Threshold overrides calibration when > 0
	Threshold   float64
	StepSeconds float64
	MaxFrames   int
	// OutputPDF writes the capture set as a PDF when non-empty
	OutputPDF string
	// KeepFramesDir writes individual captured JPEGs when non-empty
	KeepFramesDir string
	// SkipNormalize feeds the input straight to extraction
	SkipNormalize bool
	// OnProgress receives per-stage progress in [0, 100]
	OnProgress func(stage string, pct int)
	// OnFrame receives each captured frame as it is emitted
	OnFrame func(extract.Captured)
}

// Result carries everything a conversion run produced
type Result struct {
	Info      *ffmpeg.VideoInfo
	Threshold float64
	Frames    []extract.Captured
	PDFPath   string
	Elapsed   time.Duration
}

// Pipeline runs conversions. One conversion is active at a time per
// Pipeline; the extraction session owns the sampling source exclusively.
type Pipeline struct {
	logger zerolog.Logger
	cfg    *config.Config
	exec   *ffmpeg.Executor
	norm   *ffmpeg.Normalizer
}

// New creates a Pipeline from application config
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	norm := ffmpeg.NewNormalizer(exec, logger, ffmpeg.NormalizerOptions{
		TempDir:      cfg.TempDir,
		Timeout:      time.Duration(cfg.Normalize.TimeoutMinutes) * time.Minute,
		CRF:          cfg.Normalize.CRF,
		Preset:       cfg.Normalize.Preset,
		AudioBitrate: cfg.Normalize.AudioBitrate,
	})

	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		cfg:    cfg,
		exec:   exec,
		norm:   norm,
	}, nil
}

// Probe returns metadata for a video file
func (p *Pipeline) Probe(ctx context.Context, input string) (*ffmpeg.VideoInfo, error) {
	return p.exec.ProbeVideo(ctx, input)
}

// Run converts one input video into a slide set and optional PDF
func (p *Pipeline) Run(ctx context.Context, input string, opts Options) (*Result, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	start := time.Now()
	report := func(stage string, pct int) {
		if opts.OnProgress != nil {
			opts.OnProgress(stage, pct)
		}
	}

	p.logger.Info().Str("input", input).Msg("starting conversion")

	// Stage 1: normalize the input into a decodable container
	playable := input
	if !opts.SkipNormalize {
		normalized, err := p.norm.NormalizeFile(ctx, input, opts.DeclaredType, func(pct int) {
			report(StageNormalize, pct)
		})
		if err != nil {
			return nil, fmt.Errorf("normalization failed: %w", err)
		}
		playable = normalized
		if playable != input {
			defer p.removeNormalized(playable)
		}
	}

	// Stage 2: probe the playable video
	info, err := p.exec.ProbeVideo(ctx, playable)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	p.logger.Info().
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Str("codec", info.VideoCodec).
		Msg("video metadata extracted")

	src, err := frame.NewFFmpegSource(p.exec, p.logger, info, frame.SourceOptions{
		CompareWidth: p.cfg.Extract.CompareWidth,
		SeekTimeout:  time.Duration(p.cfg.Extract.SeekTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open frame source: %w", err)
	}
	defer src.Close()

	// Stage 3: calibrate unless a manual threshold was supplied
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold, err = extract.Calibrate(ctx, src, p.logger)
		if err != nil {
			return nil, fmt.Errorf("calibration failed: %w", err)
		}
		report(StageCalibrate, 100)
	}

	// Stage 4: extraction walk
	step := opts.StepSeconds
	if step <= 0 {
		step = p.cfg.Extract.StepSeconds
	}
	maxFrames := opts.MaxFrames
	if maxFrames <= 0 {
		maxFrames = p.cfg.Extract.MaxFrames
	}

	session := extract.NewSession(p.logger, src, extract.Options{
		StepSeconds: step,
		Threshold:   threshold,
		MaxFrames:   maxFrames,
		JPEGQuality: p.cfg.Extract.JPEGQuality,
	})

	frames, err := session.Run(ctx, extract.Callbacks{
		OnProgress: func(pct int) { report(StageExtract, pct) },
		OnFrame:    opts.OnFrame,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	if opts.KeepFramesDir != "" {
		if err := writeFrames(opts.KeepFramesDir, frames); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Info:      info,
		Threshold: threshold,
		Frames:    frames,
	}

	// Stage 5: document export
	if opts.OutputPDF != "" {
		if err := export.WritePDF(opts.OutputPDF, frames, export.Options{
			MaxPageWidth: p.cfg.Export.MaxPageWidth,
			JPEGQuality:  p.cfg.Extract.JPEGQuality,
		}); err != nil {
			return nil, fmt.Errorf("export failed: %w", err)
		}
		result.PDFPath = opts.OutputPDF
		report(StageExport, 100)
	}

	result.Elapsed = time.Since(start)

	p.logger.Info().
		Int("frames", len(frames)).
		Float64("threshold", threshold).
		Dur("elapsed", result.Elapsed).
		Msg("conversion complete")

	return result, nil
}

// removeNormalized drops the normalizer's workdir once extraction is done
func (p *Pipeline) removeNormalized(path string) {
	dir := filepath.Dir(path)
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn().Err(err).Str("dir", dir).Msg("normalized output cleanup failed")
	}
}

// writeFrames dumps captured JPEGs into dir for inspection
func writeFrames(dir string, frames []extract.Captured) error {
	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}
	for _, f := range frames {
		name := filepath.Join(dir, fmt.Sprintf("slide_%04d.jpg", f.Index))
		if err := os.WriteFile(name, f.JPEG, 0644); err != nil {
			return fmt.Errorf("write frame %d: %w", f.Index, err)
		}
	}
	return nil
}
