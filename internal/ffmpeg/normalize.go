package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/pkg/util"
)

// Normalizer converts arbitrary input videos into a decodable mp4, trying a
// stream-copy remux first and re-encoding only when that fails.
type Normalizer struct {
	exec    *Executor
	logger  zerolog.Logger
	tempDir string

	timeout      time.Duration
	crf          int
	preset       string
	audioBitrate string
}

// NormalizerOptions configures a Normalizer. Zero values fall back to the
// package defaults.
type NormalizerOptions struct {
	TempDir      string
	Timeout      time.Duration
	CRF          int
	Preset       string
	AudioBitrate string
}

// NewNormalizer creates a Normalizer on top of an Executor
func NewNormalizer(exec *Executor, logger zerolog.Logger, opts NormalizerOptions) *Normalizer {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.CRF == 0 {
		opts.CRF = DefaultCRF
	}
	if opts.Preset == "" {
		opts.Preset = DefaultPreset
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = DefaultAudioBitrate
	}

	return &Normalizer{
		exec:         exec,
		logger:       logger.With().Str("component", "normalizer").Logger(),
		tempDir:      opts.TempDir,
		timeout:      opts.Timeout,
		crf:          opts.CRF,
		preset:       opts.Preset,
		audioBitrate: opts.AudioBitrate,
	}
}

// mimeExtensions maps declared MIME types to working file extensions
var mimeExtensions = map[string]string{
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"video/webm":       "webm",
	"video/x-matroska": "mkv",
	"video/x-msvideo":  "avi",
	"video/x-ms-wmv":   "wmv",
	"video/x-flv":      "flv",
	"video/mpeg":       "mpg",
	"video/3gpp":       "3gp",
	"video/ogg":        "ogv",
}

// WorkingExtension resolves the extension used for the engine's input file:
// explicit hint, MIME lookup, extension embedded in the name, mp4 default.
func WorkingExtension(declared, name string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" {
		if strings.Contains(declared, "/") {
			if ext, ok := mimeExtensions[declared]; ok {
				return ext
			}
		} else {
			return strings.TrimPrefix(declared, ".")
		}
	}

	if ext := util.Extension(name); ext != "" {
		return ext
	}

	return "mp4"
}

// Decodable reports whether probed input can be played back directly
// without remuxing or re-encoding
func Decodable(info *VideoInfo) bool {
	if info == nil || info.VideoCodec == "" {
		return false
	}

	container := false
	for _, name := range strings.Split(info.FormatName, ",") {
		switch strings.TrimSpace(name) {
		case "mp4", "mov", "m4a", "3gp", "3g2", "mj2":
			container = true
		}
	}
	if !container {
		return false
	}

	switch info.VideoCodec {
	case "h264", "hevc":
	default:
		return false
	}

	if info.HasAudio {
		switch info.AudioCodec {
		case "aac", "mp3":
		default:
			return false
		}
	}

	return true
}

// NormalizeFile converts inputPath into a decodable mp4 and returns the path
// of the result. When the input is already decodable it is returned as-is.
// The returned path lives in a temp workdir owned by the caller on success.
func (n *Normalizer) NormalizeFile(ctx context.Context, inputPath, declared string, onProgress func(int)) (string, error) {
	job := uuid.New().String()[:8]
	log := n.logger.With().Str("job", job).Str("input", inputPath).Logger()

	ext := WorkingExtension(declared, inputPath)

	info, err := n.exec.ProbeVideo(ctx, inputPath)
	if err != nil {
		// Unreadable by ffprobe; conversion may still succeed, keep going.
		log.Debug().Err(err).Msg("probe failed, attempting conversion anyway")
		info = nil
	}

	if Decodable(info) {
		log.Info().Str("format", info.FormatName).Str("codec", info.VideoCodec).Msg("input already decodable, skipping conversion")
		if onProgress != nil {
			onProgress(100)
		}
		return inputPath, nil
	}

	workDir, err := os.MkdirTemp(n.tempDir, "vtp-normalize-*")
	if err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}

	outputPath := filepath.Join(workDir, "output.mp4")
	var duration time.Duration
	if info != nil {
		duration = info.Duration
	}

	log.Info().Str("ext", ext).Msg("starting stream-copy remux")
	copyArgs := []string{
		"-i", inputPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}

	phase1Err := n.runPhase(ctx, copyArgs, duration, onProgress)
	if phase1Err == nil {
		if err := verifyOutput(outputPath); err == nil {
			log.Info().Msg("stream-copy remux succeeded")
			if onProgress != nil {
				onProgress(100)
			}
			return outputPath, nil
		}
		phase1Err = fmt.Errorf("remux produced empty output")
	}

	// Fast-path failure is absorbed; the re-encode fallback decides the outcome.
	log.Debug().Err(phase1Err).Msg("stream-copy remux failed, falling back to re-encode")
	n.cleanup(outputPath)

	log.Info().Msg("starting re-encode fallback")
	encodeArgs := []string{
		"-i", inputPath,
		"-c:v", DefaultVideoCodec,
		"-preset", n.preset,
		"-crf", fmt.Sprintf("%d", n.crf),
		"-c:a", DefaultAudioCodec,
		"-b:a", n.audioBitrate,
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}

	if err := n.runPhase(ctx, encodeArgs, duration, onProgress); err != nil {
		n.cleanup(outputPath)
		_ = os.Remove(workDir)
		return "", n.classify(err)
	}

	if err := verifyOutput(outputPath); err != nil {
		n.cleanup(outputPath)
		_ = os.Remove(workDir)
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	log.Info().Msg("re-encode fallback succeeded")
	if onProgress != nil {
		onProgress(100)
	}
	return outputPath, nil
}

// Normalize converts an in-memory input blob and returns the normalized
// bytes. The engine's working files are always removed before returning.
func (n *Normalizer) Normalize(ctx context.Context, r io.Reader, declared string, onProgress func(int)) ([]byte, error) {
	ext := WorkingExtension(declared, "")

	workDir, err := os.MkdirTemp(n.tempDir, "vtp-normalize-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			n.logger.Warn().Err(err).Str("dir", workDir).Msg("workdir cleanup failed")
		}
	}()

	inputPath := filepath.Join(workDir, "input."+ext)
	f, err := os.Create(inputPath)
	if err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("write input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	outputPath, err := n.NormalizeFile(ctx, inputPath, declared, onProgress)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if outputPath != inputPath {
		util.CleanupFiles(outputPath, filepath.Dir(outputPath))
	}
	return data, nil
}

// runPhase executes one conversion attempt bounded by the phase timeout,
// reporting approximate progress at most once per reporting interval.
func (n *Normalizer) runPhase(ctx context.Context, args []string, duration time.Duration, onProgress func(int)) error {
	phaseCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	reporter := newProgressReporter(duration, onProgress)

	var stderrTail strings.Builder
	var mu sync.Mutex

	opts := RunOptions{
		Args:            args,
		ProgressHandler: reporter.observe,
		LogHandler: func(line string) {
			mu.Lock()
			// Keep a bounded tail for failure classification
			if stderrTail.Len() < 16*1024 {
				stderrTail.WriteString(line)
				stderrTail.WriteString("\n")
			}
			mu.Unlock()
		},
	}

	if err := n.exec.Run(phaseCtx, opts); err != nil {
		mu.Lock()
		tail := stderrTail.String()
		mu.Unlock()
		if phaseCtx.Err() == context.DeadlineExceeded {
			return context.DeadlineExceeded
		}
		return fmt.Errorf("%w: %s", err, lastLines(tail, 5))
	}
	return nil
}

// classify maps a phase failure to one of the user-facing causes
func (n *Normalizer) classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, n.timeout)
	case errors.Is(err, context.Canceled):
		// A caller abort is not a conversion failure
		return err
	case errors.Is(err, ErrEngineUnavailable):
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "cannot allocate memory") || strings.Contains(msg, "out of memory") {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	return fmt.Errorf("%w: %v", ErrConversionFailed, err)
}

// cleanup removes working files, logging failures without propagating them
func (n *Normalizer) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			n.logger.Warn().Err(err).Str("path", p).Msg("cleanup failed")
		}
	}
}

func verifyOutput(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}

func lastLines(s string, max int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return strings.Join(lines, " | ")
}
