package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/glizzus/encore/internal/config"
	"github.com/google/go-cmp/cmp"
)

func TestNewVoiceConfigFromEnvDefaults(t *testing.T) {
	cfg, err := config.NewVoiceConfigFromEnv()
	if err != nil {
		t.Fatalf("NewVoiceConfigFromEnv() returned error: %v", err)
	}

	want := &config.VoiceConfig{
		ConnectTimeout:      20 * time.Second,
		MaxRetries:          5,
		RetryDelay:          3 * time.Second,
		BackoffMultiplier:   1.5,
		BackoffCeiling:      20 * time.Second,
		SessionInvalidDelay: 12 * time.Second,
		StabilityDelay:      time.Second,
		CleanupDelay:        500 * time.Millisecond,
		SettleDelay:         3 * time.Second,
		IdleTimeout:         300 * time.Second,
		SendTimeout:         time.Minute,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("NewVoiceConfigFromEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewVoiceConfigFromEnvRejectsZeroRetries(t *testing.T) {
	t.Setenv("VOICE_RECONNECT_ATTEMPTS", "0")
	if _, err := config.NewVoiceConfigFromEnv(); err == nil {
		t.Fatal("expected an error for zero reconnect attempts")
	}
}

func TestNewTranscodeConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *config.TranscodeConfig)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *config.TranscodeConfig) {
				if cfg.TargetSize != 7*1024*1024 {
					t.Errorf("TargetSize = %d, want %d", cfg.TargetSize, 7*1024*1024)
				}
				if cfg.MaxRungs != 4 {
					t.Errorf("MaxRungs = %d, want 4", cfg.MaxRungs)
				}
				if cfg.Tolerance != 0.05 {
					t.Errorf("Tolerance = %v, want 0.05", cfg.Tolerance)
				}
			},
		},
		{
			name: "overrides",
			env:  map[string]string{"TRANSCODE_TARGET_SIZE": "8000000", "FFMPEG_PATH": "/opt/ffmpeg"},
			check: func(t *testing.T, cfg *config.TranscodeConfig) {
				if cfg.TargetSize != 8_000_000 || cfg.FFmpegPath != "/opt/ffmpeg" {
					t.Errorf("unexpected config: %+v", cfg)
				}
			},
		},
		{
			name:    "negative target",
			env:     map[string]string{"TRANSCODE_TARGET_SIZE": "-1"},
			wantErr: true,
		},
		{
			name:    "tolerance out of range",
			env:     map[string]string{"TRANSCODE_TOLERANCE": "1.5"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := config.NewTranscodeConfigFromEnv()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got config %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestNewMusicConfigFromEnvRejectsVolume(t *testing.T) {
	t.Setenv("DEFAULT_VOLUME", "1.2")
	if _, err := config.NewMusicConfigFromEnv(); err == nil {
		t.Fatal("expected an error for a volume above 1")
	}
}

func TestNewScratchConfigFromEnvDefaultsDir(t *testing.T) {
	cfg, err := config.NewScratchConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dir == "" {
		t.Error("expected a default scratch directory")
	}
	if cfg.SweepCron != "*/15 * * * *" {
		t.Errorf("SweepCron = %q", cfg.SweepCron)
	}
}

func TestNewLoggingConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := config.NewLoggingConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Level != slog.LevelDebug {
		t.Errorf("Level = %v, want %v", cfg.Level, slog.LevelDebug)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "db",
		Port:     "5432",
		Username: "user",
		Password: "pass",
		Database: "encore",
		SSLMode:  "disable",
		MaxConns: 4,
	}
	want := "postgres://user:pass@db:5432/encore?sslmode=disable&pool_max_conns=4"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestNewMediaConfigFromEnv(t *testing.T) {
	cfg, err := config.NewMediaConfigFromEnv()
	if err != nil {
		t.Fatalf("NewMediaConfigFromEnv() returned error: %v", err)
	}
	want := &config.MediaConfig{
		Workers:          2,
		Backlog:          8,
		JobTimeout:       15 * time.Minute,
		MaxDownloadSize:  500 << 20,
		HistoryRetention: 30 * 24 * time.Hour,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("NewMediaConfigFromEnv() mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("MEDIA_WORKERS", "0")
	if _, err := config.NewMediaConfigFromEnv(); err == nil {
		t.Error("expected an error for zero workers")
	}
}
