package transcode

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for arguments no encode could satisfy,
	// such as a non-positive duration or target size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSizeTargetUnmet is reported in a Result when every rung was tried
	// and none landed within tolerance of the target.
	ErrSizeTargetUnmet = errors.New("size target unmet")
)

type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("failed to probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

var _ error = (*ProbeError)(nil)

// EncodeAttemptError describes a single failed encoder invocation. It is
// never fatal to a job; the pipeline moves on to the next codec pair or rung.
type EncodeAttemptError struct {
	Codecs   CodecPair
	Pass     int
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *EncodeAttemptError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("encode %s pass %d timed out", e.Codecs, e.Pass)
	}
	return fmt.Sprintf("encode %s pass %d exited with code %d: %v", e.Codecs, e.Pass, e.ExitCode, e.Err)
}

func (e *EncodeAttemptError) Unwrap() error {
	return e.Err
}

var _ error = (*EncodeAttemptError)(nil)
