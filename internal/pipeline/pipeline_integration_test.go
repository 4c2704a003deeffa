package pipeline_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yimiw/video-to-ppt/internal/config"
	"github.com/yimiw/video-to-ppt/internal/extract"
	"github.com/yimiw/video-to-ppt/internal/pipeline"
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

// generateSceneVideo renders a 12-second video with hard scene changes at
// t=4 and t=8 (solid colors: black, white, black)
func generateSceneVideo(t *testing.T, path string) {
	t.Helper()
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "color=c=black:size=320x240:rate=5:duration=4",
		"-f", "lavfi", "-i", "color=c=white:size=320x240:rate=5:duration=4",
		"-f", "lavfi", "-i", "color=c=black:size=320x240:rate=5:duration=4",
		"-filter_complex", "[0][1][2]concat=n=3:v=1:a=0",
		"-pix_fmt", "yuv420p", "-c:v", "libx264", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate scene video: %v: %s", err, out)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	cfg.TempDir = t.TempDir()
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "scenes.mp4")
	generateSceneVideo(t, input)

	pipe, err := pipeline.New(zerolog.Nop(), testConfig(t))
	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	pdfPath := filepath.Join(t.TempDir(), "slides.pdf")
	var extractProgress []int
	var emitted []extract.Captured

	result, err := pipe.Run(context.Background(), input, pipeline.Options{
		Threshold:   20,
		StepSeconds: 2,
		MaxFrames:   10,
		OutputPDF:   pdfPath,
		OnProgress: func(stage string, pct int) {
			if stage == pipeline.StageExtract {
				extractProgress = append(extractProgress, pct)
			}
		},
		OnFrame: func(c extract.Captured) { emitted = append(emitted, c) },
	})
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	// black → white → black: three slides expected
	if len(result.Frames) != 3 {
		t.Errorf("expected 3 slides, got %d", len(result.Frames))
		for _, f := range result.Frames {
			t.Logf("  slide %d at %.1fs", f.Index, f.Timestamp)
		}
	}
	if len(emitted) != len(result.Frames) {
		t.Errorf("OnFrame count %d != result count %d", len(emitted), len(result.Frames))
	}
	if len(result.Frames) > 10 {
		t.Error("capture count exceeds max frames")
	}

	for i := 1; i < len(extractProgress); i++ {
		if extractProgress[i] < extractProgress[i-1] {
			t.Errorf("extraction progress decreased: %v", extractProgress)
			break
		}
	}
	if n := len(extractProgress); n == 0 || extractProgress[n-1] != 100 {
		t.Errorf("extraction progress did not end at 100: %v", extractProgress)
	}

	stat, err := os.Stat(pdfPath)
	if err != nil {
		t.Fatalf("PDF not written: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("PDF is empty")
	}
}

func TestPipelineAutoCalibration(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "scenes.mp4")
	generateSceneVideo(t, input)

	pipe, err := pipeline.New(zerolog.Nop(), testConfig(t))
	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	result, err := pipe.Run(context.Background(), input, pipeline.Options{
		StepSeconds: 2,
		MaxFrames:   10,
	})
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if result.Threshold < extract.MinThreshold || result.Threshold > extract.MaxThreshold {
		t.Errorf("calibrated threshold %f outside [%d, %d]", result.Threshold, extract.MinThreshold, extract.MaxThreshold)
	}
	if len(result.Frames) == 0 {
		t.Error("no frames captured")
	}
}

func TestPipelineKeepFrames(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "scenes.mp4")
	generateSceneVideo(t, input)

	pipe, err := pipeline.New(zerolog.Nop(), testConfig(t))
	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	framesDir := filepath.Join(t.TempDir(), "frames")
	result, err := pipe.Run(context.Background(), input, pipeline.Options{
		Threshold:     20,
		StepSeconds:   2,
		KeepFramesDir: framesDir,
	})
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	entries, err := os.ReadDir(framesDir)
	if err != nil {
		t.Fatalf("frames dir missing: %v", err)
	}
	if len(entries) != len(result.Frames) {
		t.Errorf("wrote %d frame files, captured %d", len(entries), len(result.Frames))
	}
}
