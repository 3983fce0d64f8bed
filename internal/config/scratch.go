package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type ScratchConfig struct {
	Dir       string        `env:"SCRATCH_DIR"`
	MaxAge    time.Duration `env:"SCRATCH_MAX_AGE, default=1h"`
	SweepCron string        `env:"SCRATCH_SWEEP_CRON, default=*/15 * * * *"`
}

func NewScratchConfigFromEnv() (*ScratchConfig, error) {
	var cfg ScratchConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "encore_media")
	}
	return &cfg, nil
}
