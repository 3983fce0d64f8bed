package voice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{
		Base:           3 * time.Second,
		Multiplier:     1.5,
		Ceiling:        20 * time.Second,
		SessionInvalid: 12 * time.Second,
	}
	invalid := &SessionInvalidatedError{Code: CloseSessionInvalidated, Err: errors.New("closed")}

	tests := []struct {
		attempt int
		prevErr error
		want    time.Duration
	}{
		{1, nil, 0},
		{1, invalid, 0},
		{2, errors.New("x"), 3 * time.Second},
		{3, errors.New("x"), 4500 * time.Millisecond},
		{4, errors.New("x"), 6750 * time.Millisecond},
		{5, errors.New("x"), 10125 * time.Millisecond},
		{7, errors.New("x"), 20 * time.Second},
		{3, invalid, 12 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			if got := b.Delay(tt.attempt, tt.prevErr); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		invalidated bool
		target      error
	}{
		{
			name:        "close frame 4006",
			err:         fmt.Errorf("join: %w", &websocket.CloseError{Code: 4006}),
			invalidated: true,
		},
		{
			name:        "4006 in message",
			err:         errors.New("websocket: close 4006: Session is no longer valid."),
			invalidated: true,
		},
		{
			name: "snowflake containing 4006",
			err:  errors.New("unknown channel 1240060571234567"),
		},
		{
			name:   "deadline",
			err:    context.DeadlineExceeded,
			target: ErrConnectionTimeout,
		},
		{
			name:   "timeout text",
			err:    errors.New("timeout waiting for voice"),
			target: ErrConnectionTimeout,
		},
		{
			name:   "already connected",
			err:    errors.New("Already connected to a voice channel."),
			target: ErrTransportRejected,
		},
		{
			name: "other close code",
			err:  &websocket.CloseError{Code: 4014},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if IsSessionInvalidated(got) != tt.invalidated {
				t.Errorf("IsSessionInvalidated(%v) = %v, want %v", got, !tt.invalidated, tt.invalidated)
			}
			if tt.target != nil && !errors.Is(got, tt.target) {
				t.Errorf("classify(%v) = %v, want it to wrap %v", tt.err, got, tt.target)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classify(%v) lost the original error", tt.err)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
}
