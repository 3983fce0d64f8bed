package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type MediaConfig struct {
	Workers    int           `env:"MEDIA_WORKERS, default=2"`
	Backlog    int           `env:"MEDIA_BACKLOG, default=8"`
	JobTimeout time.Duration `env:"MEDIA_JOB_TIMEOUT, default=15m"`
	// MaxDownloadSize caps attachments fetched for /convert and /mediainfo.
	MaxDownloadSize int64 `env:"MEDIA_MAX_DOWNLOAD_SIZE, default=524288000"`
	// HistoryRetention is how long transcode history is kept.
	HistoryRetention time.Duration `env:"MEDIA_HISTORY_RETENTION, default=720h"`
}

func NewMediaConfigFromEnv() (*MediaConfig, error) {
	var cfg MediaConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("MEDIA_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.Backlog < 0 {
		return nil, fmt.Errorf("MEDIA_BACKLOG must not be negative, got %d", cfg.Backlog)
	}
	return &cfg, nil
}
