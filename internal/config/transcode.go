package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type TranscodeConfig struct {
	FFmpegPath    string        `env:"FFMPEG_PATH, default=ffmpeg"`
	FFprobePath   string        `env:"FFPROBE_PATH, default=ffprobe"`
	TargetSize    int64         `env:"TRANSCODE_TARGET_SIZE, default=7340032"`
	Tolerance     float64       `env:"TRANSCODE_TOLERANCE, default=0.05"`
	MaxRungs      int           `env:"TRANSCODE_MAX_RUNGS, default=4"`
	EncodeTimeout time.Duration `env:"TRANSCODE_ENCODE_TIMEOUT, default=10m"`
	ProbeTimeout  time.Duration `env:"TRANSCODE_PROBE_TIMEOUT, default=30s"`
}

func NewTranscodeConfigFromEnv() (*TranscodeConfig, error) {
	var cfg TranscodeConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.TargetSize <= 0 {
		return nil, fmt.Errorf("TRANSCODE_TARGET_SIZE must be positive, got %d", cfg.TargetSize)
	}
	if cfg.Tolerance < 0 || cfg.Tolerance >= 1 {
		return nil, fmt.Errorf("TRANSCODE_TOLERANCE must be within [0, 1), got %v", cfg.Tolerance)
	}
	return &cfg, nil
}
