package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type ResolverConfig struct {
	YTDLPPath    string        `env:"YTDLP_PATH"`
	Rate         float64       `env:"RESOLVER_RATE, default=4"`
	Burst        int           `env:"RESOLVER_BURST, default=10"`
	StreamURLTTL time.Duration `env:"STREAM_URL_TTL, default=4h"`
}

func NewResolverConfigFromEnv() (*ResolverConfig, error) {
	var cfg ResolverConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
