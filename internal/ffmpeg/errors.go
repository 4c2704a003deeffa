package ffmpeg

import "errors"

// Classified conversion failure causes, matched with errors.Is for
// user-facing messaging. Anything unclassified wraps ErrConversionFailed.
var (
	ErrEngineUnavailable = errors.New("transcoding engine unavailable")
	ErrTimeout           = errors.New("conversion timed out")
	ErrOutOfMemory       = errors.New("conversion ran out of memory")
	ErrConversionFailed  = errors.New("conversion failed")
)
