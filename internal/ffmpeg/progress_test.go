package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressReporterStagedBuckets(t *testing.T) {
	var got []int
	r := newProgressReporter(0, func(pct int) { got = append(got, pct) })
	r.interval = 0

	r.observe(&Progress{Frame: 1})
	r.observe(&Progress{Frame: 50})
	r.observe(&Progress{Frame: 200})
	r.observe(&Progress{Frame: 800})
	r.observe(&Progress{Frame: 2000})

	assert.Equal(t, []int{10, 30, 55, 80}, got)
}

func TestProgressReporterNumericOverridesStaged(t *testing.T) {
	var got []int
	r := newProgressReporter(100*time.Second, func(pct int) { got = append(got, pct) })
	r.interval = 0

	// Engine reports a usable timestamp: the numeric percentage wins over
	// the frame bucket estimate
	r.observe(&Progress{Frame: 1, OutTime: 42 * time.Second})
	assert.Equal(t, []int{42}, got)

	// And never exceeds 99 before completion
	r.observe(&Progress{Frame: 1, OutTime: 300 * time.Second})
	assert.Equal(t, []int{42, 99}, got)
}

func TestProgressReporterMonotone(t *testing.T) {
	var got []int
	r := newProgressReporter(100*time.Second, func(pct int) { got = append(got, pct) })
	r.interval = 0

	r.observe(&Progress{OutTime: 50 * time.Second})
	r.observe(&Progress{OutTime: 30 * time.Second})
	r.observe(&Progress{OutTime: 70 * time.Second})

	assert.Equal(t, []int{50, 70}, got)
}

func TestProgressReporterRateLimited(t *testing.T) {
	var got []int
	r := newProgressReporter(100*time.Second, func(pct int) { got = append(got, pct) })

	r.observe(&Progress{OutTime: 10 * time.Second})
	// Within the reporting interval: suppressed even though it advanced
	r.observe(&Progress{OutTime: 20 * time.Second})

	assert.Equal(t, []int{10}, got)
}

func TestProgressReporterNilCallback(t *testing.T) {
	r := newProgressReporter(time.Minute, nil)
	r.observe(&Progress{Frame: 100, OutTime: time.Second}) // must not panic
}
