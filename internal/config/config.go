package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir string `yaml:"temp_dir"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Keyframe extraction settings
	Extract ExtractConfig `yaml:"extract"`

	// Input normalization settings
	Normalize NormalizeConfig `yaml:"normalize"`

	// Document export settings
	Export ExportConfig `yaml:"export"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads"`
}

type ExtractConfig struct {
	// StepSeconds is the sampling interval of the extraction walk.
	StepSeconds float64 `yaml:"step_seconds"`
	// Threshold overrides calibration when > 0.
	Threshold float64 `yaml:"threshold"`
	MaxFrames int     `yaml:"max_frames"`
	// CompareWidth is the raster width used for frame differencing.
	CompareWidth int `yaml:"compare_width"`
	JPEGQuality  int `yaml:"jpeg_quality"`
	// SeekTimeoutSeconds bounds each seek-and-rasterize call.
	SeekTimeoutSeconds int `yaml:"seek_timeout_seconds"`
}

type NormalizeConfig struct {
	// TimeoutMinutes bounds each conversion phase.
	TimeoutMinutes int    `yaml:"timeout_minutes"`
	CRF            int    `yaml:"crf"`
	Preset         string `yaml:"preset"`
	AudioBitrate   string `yaml:"audio_bitrate"`
}

type ExportConfig struct {
	// MaxPageWidth caps slide width in PDF points; 0 keeps source size.
	MaxPageWidth int `yaml:"max_page_width"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		FFmpeg: FFmpegConfig{
			Threads: 0,
		},
		Extract: ExtractConfig{
			StepSeconds:        2,
			Threshold:          0,
			MaxFrames:          60,
			CompareWidth:       640,
			JPEGQuality:        80,
			SeekTimeoutSeconds: 30,
		},
		Normalize: NormalizeConfig{
			TimeoutMinutes: 5,
			CRF:            28,
			Preset:         "fast",
			AudioBitrate:   "128k",
		},
		Export: ExportConfig{
			MaxPageWidth: 1280,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".vtp", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
