package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/sethvargo/go-envconfig"
)

type LoggingConfig struct {
	Level slog.Level `env:"LOG_LEVEL, default=info"`
}

func NewLoggingConfigFromEnv() (*LoggingConfig, error) {
	var cfg LoggingConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Logger builds the process-wide text logger at the configured level.
func (c *LoggingConfig) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level}))
}
