package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/glizzus/encore/internal/config"
)

// ExecResult holds the outcome of a single encoder invocation.
type ExecResult struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (r ExecResult) OK() bool {
	return r.Err == nil
}

// Runner is the subprocess boundary of the pipeline.
type Runner interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
	Encode(ctx context.Context, args []string) ExecResult
}

// FFmpegRunner runs the ffprobe and ffmpeg binaries.
type FFmpegRunner struct {
	FFmpegPath    string
	FFprobePath   string
	EncodeTimeout time.Duration
	ProbeTimeout  time.Duration
}

func NewFFmpegRunner(cfg *config.TranscodeConfig) *FFmpegRunner {
	return &FFmpegRunner{
		FFmpegPath:    cfg.FFmpegPath,
		FFprobePath:   cfg.FFprobePath,
		EncodeTimeout: cfg.EncodeTimeout,
		ProbeTimeout:  cfg.ProbeTimeout,
	}
}

var _ Runner = (*FFmpegRunner)(nil)

func (r *FFmpegRunner) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := withOptionalTimeout(ctx, r.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseProbeJSON(out)
}

// Encode runs ffmpeg with args and captures stderr. A run that outlives the
// encode timeout is killed and reported with TimedOut set.
func (r *FFmpegRunner) Encode(ctx context.Context, args []string) ExecResult {
	ctx, cancel := withOptionalTimeout(ctx, r.EncodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	result := ExecResult{
		Stderr: stderrBuf.String(),
		Err:    err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}
	return result
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// tailLines returns at most the last n lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
