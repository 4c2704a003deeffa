package frame

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/ffmpeg"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func generateTestVideo(t *testing.T, path string) {
	t.Helper()
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=320x240:rate=10",
		"-pix_fmt", "yuv420p", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v: %s", err, out)
	}
}

func newTestSource(t *testing.T, compareWidth int) *FFmpegSource {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.mp4")
	generateTestVideo(t, path)

	e, err := ffmpeg.New(zerolog.Nop(), 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	info, err := e.ProbeVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	src, err := NewFFmpegSource(e, zerolog.Nop(), info, SourceOptions{
		CompareWidth: compareWidth,
		SeekTimeout:  15 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	return src
}

func TestFFmpegSourceRenderAt(t *testing.T) {
	skipIfNoFFmpeg(t)

	src := newTestSource(t, 0)
	defer src.Close()

	if src.Duration() < 2.5 || src.Duration() > 3.5 {
		t.Errorf("unexpected duration %f", src.Duration())
	}

	sample, err := src.RenderAt(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderAt failed: %v", err)
	}

	if sample.Pixels.Width != 320 || sample.Pixels.Height != 240 {
		t.Errorf("unexpected raster size %dx%d", sample.Pixels.Width, sample.Pixels.Height)
	}
	if sample.Image.Bounds().Dx() != 320 {
		t.Errorf("full-resolution image width = %d", sample.Image.Bounds().Dx())
	}
}

func TestFFmpegSourceCompareDownscale(t *testing.T) {
	skipIfNoFFmpeg(t)

	src := newTestSource(t, 160)
	defer src.Close()

	a, err := src.RenderAt(context.Background(), 0.5)
	if err != nil {
		t.Fatalf("RenderAt failed: %v", err)
	}
	b, err := src.RenderAt(context.Background(), 2.0)
	if err != nil {
		t.Fatalf("RenderAt failed: %v", err)
	}

	if a.Pixels.Width != 160 {
		t.Errorf("comparison raster width = %d, want 160", a.Pixels.Width)
	}
	// Dimensions are fixed across the session, so differencing works
	if _, err := Difference(a.Pixels, b.Pixels); err != nil {
		t.Errorf("Difference failed: %v", err)
	}
	// Full-resolution capture path is untouched by the downscale
	if a.Image.Bounds().Dx() != 320 {
		t.Errorf("full-resolution image width = %d, want 320", a.Image.Bounds().Dx())
	}
}

func TestFFmpegSourceSeekPastEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	src := newTestSource(t, 0)
	defer src.Close()

	// Sampling exactly at the total duration must still yield a frame
	sample, err := src.RenderAt(context.Background(), src.Duration())
	if err != nil {
		t.Fatalf("RenderAt at duration failed: %v", err)
	}
	if sample.Timestamp != src.Duration() {
		t.Errorf("sample timestamp = %f, want %f", sample.Timestamp, src.Duration())
	}
}
