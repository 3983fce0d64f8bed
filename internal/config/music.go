package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type MusicConfig struct {
	MaxQueueSize     int           `env:"MAX_QUEUE_SIZE, default=20"`
	HistorySize      int           `env:"QUEUE_HISTORY_SIZE, default=10"`
	MaxSongDuration  time.Duration `env:"MAX_SONG_DURATION, default=2h"`
	MaxPlaylistItems int           `env:"MAX_PLAYLIST_ITEMS, default=50"`
	DefaultVolume    float64       `env:"DEFAULT_VOLUME, default=0.5"`
}

func NewMusicConfigFromEnv() (*MusicConfig, error) {
	var cfg MusicConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxQueueSize < 1 {
		return nil, fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", cfg.MaxQueueSize)
	}
	if cfg.DefaultVolume < 0 || cfg.DefaultVolume > 1 {
		return nil, fmt.Errorf("DEFAULT_VOLUME must be within [0, 1], got %v", cfg.DefaultVolume)
	}
	return &cfg, nil
}
