package extract

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/frame"
)

// Calibrate derives a capture threshold for a video by sampling frames
// spread across its duration and measuring how much adjacent samples differ.
//
// Boundary pairs are further apart in time than the consecutive frames seen
// during extraction, so their scores run high; the median is halved to
// compensate before clamping. Without the correction the threshold would
// overshoot and suppress legitimate slide transitions.
func Calibrate(ctx context.Context, src frame.Source, logger zerolog.Logger) (float64, error) {
	log := logger.With().Str("component", "calibrate").Logger()

	duration := src.Duration()
	sampleCount := int(duration / 10)
	if sampleCount < minCalibrationSamples {
		sampleCount = minCalibrationSamples
	}
	if sampleCount > maxCalibrationSamples {
		sampleCount = maxCalibrationSamples
	}

	interval := duration / float64(sampleCount)

	log.Debug().
		Float64("duration", duration).
		Int("samples", sampleCount).
		Msg("collecting calibration samples")

	var scores []float64
	var prev *frame.Sample

	for i := 0; i <= sampleCount; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		cur, err := src.RenderAt(ctx, float64(i)*interval)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			// A failed boundary render costs one pair, not the calibration
			log.Warn().Err(err).Int("boundary", i).Msg("calibration sample failed")
			prev = nil
			continue
		}

		if prev != nil {
			score, err := frame.Difference(prev.Pixels, cur.Pixels)
			if err != nil {
				return 0, err
			}
			scores = append(scores, score)
		}
		prev = cur
	}

	if len(scores) == 0 {
		log.Info().Float64("threshold", DefaultThreshold).Msg("no comparable samples, using default threshold")
		return DefaultThreshold, nil
	}

	sort.Float64s(scores)
	median := scores[(len(scores)-1)/2]

	threshold := math.Round(median * 0.5)
	if threshold < MinThreshold {
		threshold = MinThreshold
	}
	if threshold > MaxThreshold {
		threshold = MaxThreshold
	}

	log.Info().
		Float64("median", median).
		Float64("threshold", threshold).
		Int("pairs", len(scores)).
		Msg("calibration complete")

	return threshold, nil
}
