package extract

// Captured is one emitted slide: a lossy-encoded still image and its
// ordinal position in the output sequence
type Captured struct {
	Index     int
	Timestamp float64
	JPEG      []byte
}

// Options configures one extraction session
type Options struct {
	// StepSeconds is the sampling interval of the walk
	StepSeconds float64
	// Threshold is the minimum dissimilarity score for a sampled frame to
	// be captured as a new slide
	Threshold float64
	// MaxFrames caps the number of captured frames; <= 0 means no cap
	MaxFrames int
	// JPEGQuality is the capture encoding quality (1-100)
	JPEGQuality int
}

// Callbacks deliver incremental extraction results. All callbacks are
// invoked from the extraction goroutine, in order; nil fields are skipped.
type Callbacks struct {
	// OnProgress receives a percentage in [0, 100], monotonically
	// non-decreasing
	OnProgress func(pct int)
	// OnFrame receives each captured frame as it is emitted
	OnFrame func(Captured)
	// OnComplete receives the full ordered capture set once the walk ends.
	// Not invoked when the session aborts.
	OnComplete func([]Captured)
}

// Calibration bounds and fallback
const (
	DefaultThreshold = 30
	MinThreshold     = 5
	MaxThreshold     = 40

	minCalibrationSamples = 20
	maxCalibrationSamples = 50
)
