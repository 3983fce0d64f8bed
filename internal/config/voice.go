package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type VoiceConfig struct {
	ConnectTimeout      time.Duration `env:"VOICE_CONNECTION_TIMEOUT, default=20s"`
	MaxRetries          int           `env:"VOICE_RECONNECT_ATTEMPTS, default=5"`
	RetryDelay          time.Duration `env:"VOICE_RETRY_DELAY, default=3s"`
	BackoffMultiplier   float64       `env:"VOICE_BACKOFF_MULTIPLIER, default=1.5"`
	BackoffCeiling      time.Duration `env:"VOICE_BACKOFF_CEILING, default=20s"`
	SessionInvalidDelay time.Duration `env:"VOICE_SESSION_INVALID_DELAY, default=12s"`
	StabilityDelay      time.Duration `env:"VOICE_STABILITY_DELAY, default=1s"`
	CleanupDelay        time.Duration `env:"VOICE_CLEANUP_DELAY, default=500ms"`
	SettleDelay         time.Duration `env:"VOICE_SETTLE_DELAY, default=3s"`
	IdleTimeout         time.Duration `env:"VOICE_AUTO_DISCONNECT_TIMEOUT, default=300s"`
	SendTimeout         time.Duration `env:"VOICE_SEND_TIMEOUT, default=1m"`
}

func NewVoiceConfigFromEnv() (*VoiceConfig, error) {
	var cfg VoiceConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("VOICE_RECONNECT_ATTEMPTS must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.BackoffMultiplier < 1 {
		return nil, fmt.Errorf("VOICE_BACKOFF_MULTIPLIER must be at least 1, got %v", cfg.BackoffMultiplier)
	}
	return &cfg, nil
}
