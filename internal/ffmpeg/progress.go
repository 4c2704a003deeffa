package ffmpeg

import (
	"math"
	"time"
)

// progressReporter turns raw engine progress into a best-effort percentage.
//
// The primary signal is activity-based: observed frame counters crossing
// coarse buckets. When the engine reports a usable output timestamp and the
// total duration is known, that numeric percentage takes precedence. Both
// are approximate; reports are rate-limited and never decrease.
type progressReporter struct {
	duration time.Duration
	onReport func(int)

	interval   time.Duration
	lastReport time.Time
	lastPct    int
}

// frameBuckets maps observed frame counts to staged percentages
var frameBuckets = []struct {
	frames int
	pct    int
}{
	{1, 10},
	{100, 30},
	{500, 55},
	{1500, 80},
	{5000, 92},
}

func newProgressReporter(duration time.Duration, onReport func(int)) *progressReporter {
	return &progressReporter{
		duration: duration,
		onReport: onReport,
		interval: 2 * time.Second,
		lastPct:  -1,
	}
}

func (r *progressReporter) observe(p *Progress) {
	if r.onReport == nil {
		return
	}

	pct := 0
	for _, b := range frameBuckets {
		if p.Frame >= b.frames {
			pct = b.pct
		}
	}

	if r.duration > 0 && p.OutTime > 0 {
		numeric := int(math.Round(float64(p.OutTime) / float64(r.duration) * 100))
		if numeric > 0 {
			if numeric > 99 {
				numeric = 99
			}
			pct = numeric
		}
	}

	if pct <= r.lastPct {
		return
	}

	now := time.Now()
	if now.Sub(r.lastReport) < r.interval {
		return
	}
	r.lastReport = now

	r.lastPct = pct
	r.onReport(pct)
}
