package opus

import (
	"context"
	"errors"
	"time"
)

var ErrVoiceConnClosed = errors.New("voice connection send timeout")

// Send hands one frame to a voice send channel. It gives up with
// ErrVoiceConnClosed when nothing drains the channel within timeout.
func Send(ctx context.Context, ch chan<- []byte, frame []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- frame:
		return nil
	case <-timer.C:
		return ErrVoiceConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
