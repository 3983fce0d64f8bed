package voice

import (
	"math"
	"time"

	"github.com/glizzus/encore/internal/config"
)

// Backoff computes the wait before a connect attempt.
type Backoff struct {
	Base           time.Duration
	Multiplier     float64
	Ceiling        time.Duration
	SessionInvalid time.Duration
}

// BackoffFromConfig builds a Backoff from the voice configuration.
func BackoffFromConfig(cfg *config.VoiceConfig) Backoff {
	return Backoff{
		Base:           cfg.RetryDelay,
		Multiplier:     cfg.BackoffMultiplier,
		Ceiling:        cfg.BackoffCeiling,
		SessionInvalid: cfg.SessionInvalidDelay,
	}
}

// Delay returns the wait before the given 1-based attempt. The first attempt
// never waits. When the previous attempt ended in a session invalidation the
// fixed SessionInvalid delay wins over the exponential schedule.
func (b Backoff) Delay(attempt int, prevErr error) time.Duration {
	if attempt <= 1 {
		return 0
	}
	if IsSessionInvalidated(prevErr) {
		return b.SessionInvalid
	}

	d := time.Duration(float64(b.Base) * math.Pow(b.Multiplier, float64(attempt-2)))
	if b.Ceiling > 0 && d > b.Ceiling {
		return b.Ceiling
	}
	return d
}
