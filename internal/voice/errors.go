package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// CloseSessionInvalidated is the voice gateway close code sent when the
// session token is no longer valid.
const CloseSessionInvalidated = 4006

// closeSessionInvalidatedText is how a 4006 close frame reads once it has
// been flattened into an error string.
var closeSessionInvalidatedText = fmt.Sprintf("close %d", CloseSessionInvalidated)

var (
	ErrConnectionTimeout     = errors.New("voice connection timed out")
	ErrTransportRejected     = errors.New("voice transport rejected the connection")
	ErrFatalCodecUnavailable = errors.New("audio encoder unavailable")
	ErrUnstableConnection    = errors.New("voice connection dropped right after connecting")
	ErrNotConnected          = errors.New("voice session is not connected")
	ErrAlreadyPlaying        = errors.New("voice session is already playing")
)

// SessionInvalidatedError means the gateway dropped the session and a fresh
// connection is required instead of a resume.
type SessionInvalidatedError struct {
	Code int
	Err  error
}

var _ error = (*SessionInvalidatedError)(nil)

func (e *SessionInvalidatedError) Error() string {
	return fmt.Sprintf("voice session invalidated (code %d): %v", e.Code, e.Err)
}

func (e *SessionInvalidatedError) Unwrap() error {
	return e.Err
}

// IsSessionInvalidated reports whether err, or anything it wraps, is a
// session invalidation.
func IsSessionInvalidated(err error) bool {
	var invalid *SessionInvalidatedError
	return errors.As(err, &invalid)
}

// classify maps a raw transport error onto the package's error taxonomy.
// Unrecognised errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var invalid *SessionInvalidatedError
	if errors.As(err, &invalid) {
		return err
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == CloseSessionInvalidated {
		return &SessionInvalidatedError{Code: closeErr.Code, Err: err}
	}

	if errors.Is(err, ErrConnectionTimeout) || errors.Is(err, ErrTransportRejected) {
		return err
	}

	// discordgo sometimes reports these only as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, closeSessionInvalidatedText) || strings.Contains(msg, "session is no longer valid"):
		return &SessionInvalidatedError{Code: CloseSessionInvalidated, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %w", ErrConnectionTimeout, err)
	case strings.Contains(msg, "already connect"):
		return fmt.Errorf("%w: %w", ErrTransportRejected, err)
	}
	return err
}
