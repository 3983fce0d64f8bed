package handler

import (
	"errors"

	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/resolver"
	"github.com/glizzus/encore/internal/voice"
	"github.com/glizzus/encore/internal/worker"
)

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

var (
	errGuildOnly      = &UserError{Message: "This command only works in a server."}
	errNotInVoice     = &UserError{Message: "Join a voice channel first."}
	errNothingPlaying = &UserError{Message: "Nothing is playing."}
	errMediaDisabled  = &UserError{Message: "Media processing is not enabled."}
	errNoHistory      = &UserError{Message: "Transcode history is not enabled."}
)

// describeVoiceError turns the last connection failure into something a
// user can act on.
func describeVoiceError(err error) string {
	switch {
	case err == nil:
		return "Could not connect to voice."
	case errors.Is(err, voice.ErrFatalCodecUnavailable):
		return "Audio encoding is unavailable on this host."
	case voice.IsSessionInvalidated(err):
		return "Discord invalidated the voice session. Try again in a moment."
	case errors.Is(err, voice.ErrConnectionTimeout):
		return "Timed out connecting to voice."
	case errors.Is(err, voice.ErrUnstableConnection):
		return "The voice connection kept dropping."
	case errors.Is(err, voice.ErrTransportRejected):
		return "Discord rejected the voice connection."
	default:
		return "Could not connect to voice."
	}
}

func describeResolveError(err error) string {
	switch {
	case errors.Is(err, resolver.ErrNoResults):
		return "No results found."
	case errors.Is(err, resolver.ErrTooLong):
		return "That track is longer than the maximum allowed duration."
	default:
		return "Could not load that track."
	}
}

func describeMediaError(err error) string {
	switch {
	case errors.Is(err, media.ErrNoMedia):
		return "Couldn't find a video at that link."
	case errors.Is(err, media.ErrTooLarge):
		return "That video is too large to upload, even after compression."
	case errors.Is(err, media.ErrDownloadTooLarge):
		return "That file is too large to download."
	case errors.Is(err, worker.ErrBacklogFull):
		return "Too many videos are being processed right now. Try again shortly."
	default:
		return "Something went wrong processing that file."
	}
}
