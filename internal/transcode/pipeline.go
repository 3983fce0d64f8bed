package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glizzus/encore/internal/generator"
)

// Outcome says which file a Result points at.
type Outcome int

const (
	// OutcomeUnchanged means the input was already under the ceiling.
	OutcomeUnchanged Outcome = iota
	// OutcomeFit means an encode landed within tolerance of the ceiling.
	OutcomeFit
	// OutcomeDegraded means no encode fit, but the smallest one beat the input.
	OutcomeDegraded
	// OutcomeOriginal means nothing beat the input, so it is returned as is.
	OutcomeOriginal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFit:
		return "fit"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeOriginal:
		return "original"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempt is one codec pair tried on one rung.
type Attempt struct {
	Rung         int
	Codecs       CodecPair
	VideoBitrate int64
	AudioBitrate int64
	ResultSize   int64
	Success      bool
	Err          string
	Elapsed      time.Duration
}

type Job struct {
	ID           string
	InputPath    string
	TargetSize   int64
	OriginalSize int64
	Duration     float64
	HasAudio     bool
	Attempts     []Attempt
	Outcome      Outcome
	OutputSize   int64
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Result struct {
	// Path is always set. It is the input path for OutcomeUnchanged and
	// OutcomeOriginal; otherwise the caller owns the file.
	Path    string
	Size    int64
	Outcome Outcome
	Job     *Job
	// Err carries a non-fatal cause: a *ProbeError or ErrSizeTargetUnmet.
	Err error
}

// Scratch hands out paths for intermediate and output files.
type Scratch interface {
	Path(prefix, ext string) (string, error)
}

// JobRecorder persists finished jobs.
type JobRecorder interface {
	Record(ctx context.Context, job *Job) error
}

type Options struct {
	Ladder    Ladder
	Tolerance float64
	MaxRungs  int
	Recorder  JobRecorder
	IDs       generator.Generator[string]
	Logger    *slog.Logger
}

type Pipeline struct {
	runner    Runner
	scratch   Scratch
	ladder    Ladder
	tolerance float64
	recorder  JobRecorder
	ids       generator.Generator[string]
	logger    *slog.Logger
}

func NewPipeline(runner Runner, scratch Scratch, opts Options) (*Pipeline, error) {
	ladder := opts.Ladder
	if ladder == nil {
		ladder = DefaultLadder()
	}
	if opts.MaxRungs > 0 && len(ladder) > opts.MaxRungs {
		ladder = ladder[:opts.MaxRungs]
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}
	if opts.Tolerance < 0 {
		return nil, fmt.Errorf("%w: negative tolerance %v", ErrInvalidInput, opts.Tolerance)
	}
	if opts.IDs == nil {
		opts.IDs = &generator.UUIDV4Generator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		runner:    runner,
		scratch:   scratch,
		ladder:    ladder,
		tolerance: opts.Tolerance,
		recorder:  opts.Recorder,
		ids:       opts.IDs,
		logger:    opts.Logger.With("component", "transcode"),
	}, nil
}

// CompressToFit returns a path to a file at or near targetSize. The only
// error is ErrInvalidInput; every other failure still yields a usable path.
func (p *Pipeline) CompressToFit(ctx context.Context, inputPath string, targetSize int64) (string, error) {
	result, err := p.Compress(ctx, inputPath, targetSize)
	if err != nil {
		return "", err
	}
	return result.Path, nil
}

// Compress is CompressToFit with the job details attached.
func (p *Pipeline) Compress(ctx context.Context, inputPath string, targetSize int64) (*Result, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidInput, targetSize)
	}
	originalSize, err := fileSize(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	id, err := p.ids.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}

	job := &Job{
		ID:           id,
		InputPath:    inputPath,
		TargetSize:   targetSize,
		OriginalSize: originalSize,
		StartedAt:    time.Now(),
	}
	logger := p.logger.With("jobID", id, "input", filepath.Base(inputPath))

	result := p.compress(ctx, logger, job)

	job.Outcome = result.Outcome
	job.OutputSize = result.Size
	job.FinishedAt = time.Now()
	result.Job = job
	p.record(ctx, logger, job)

	logger.Info("Transcode job finished",
		"outcome", result.Outcome.String(),
		"originalSize", originalSize,
		"outputSize", result.Size,
		"attempts", len(job.Attempts),
		"elapsed", job.FinishedAt.Sub(job.StartedAt),
	)
	return result, nil
}

type candidate struct {
	path string
	size int64
}

func (p *Pipeline) compress(ctx context.Context, logger *slog.Logger, job *Job) *Result {
	original := &Result{Path: job.InputPath, Size: job.OriginalSize, Outcome: OutcomeOriginal}

	if job.OriginalSize <= job.TargetSize {
		original.Outcome = OutcomeUnchanged
		return original
	}

	probe, err := p.runner.Probe(ctx, job.InputPath)
	if err == nil && probe.Duration <= 0 {
		err = errors.New("duration unavailable")
	}
	if err != nil {
		perr := &ProbeError{Path: job.InputPath, Err: err}
		logger.Error("Failed to probe input, returning original", "error", perr)
		original.Err = perr
		return original
	}
	job.Duration = probe.Duration
	job.HasAudio = probe.HasAudio

	limit := int64(float64(job.TargetSize) * (1 + p.tolerance))
	budget := job.TargetSize

	var best *candidate

	for i, rung := range p.ladder {
		if ctx.Err() != nil {
			logger.Warn("Transcode cancelled", "error", ctx.Err())
			break
		}

		var audio int64
		if job.HasAudio {
			audio = rung.AudioBitrate()
		}
		video, err := PlanBitrate(job.Duration, budget, audio, rung.Overhead, rung.MinVideoBitrate)
		if err != nil {
			logger.Error("Failed to plan bitrate", "rung", i, "error", err)
			break
		}

		out, ok := p.encodeRung(ctx, logger, job, i, rung, video, audio, limit)
		if !ok {
			continue
		}

		if best == nil || out.size < best.size {
			if best != nil {
				removeIntermediate(logger, best.path)
			}
			best = out
		} else {
			removeIntermediate(logger, out.path)
		}

		if out.size <= limit {
			return &Result{Path: best.path, Size: best.size, Outcome: OutcomeFit}
		}
		budget = nextBudget(budget, out.size, job.TargetSize)
	}

	if best != nil && best.size < job.OriginalSize {
		logger.Warn("No rung met the target, returning smallest attempt", "size", best.size, "target", job.TargetSize)
		return &Result{Path: best.path, Size: best.size, Outcome: OutcomeDegraded, Err: ErrSizeTargetUnmet}
	}
	if best != nil {
		removeIntermediate(logger, best.path)
	}
	logger.Warn("No attempt beat the original", "target", job.TargetSize)
	original.Err = ErrSizeTargetUnmet
	return original
}

// nextBudget scales the byte budget by how far the last output overshot the
// target, always shrinking it.
func nextBudget(budget, resultSize, target int64) int64 {
	if resultSize <= 0 {
		return budget * 9 / 10
	}
	corrected := budget * target / resultSize
	if corrected >= budget {
		corrected = budget * 9 / 10
	}
	return max(corrected, 1)
}

// encodeRung tries the rung's codec pairs in order and stops at the first
// one that produces an artifact.
func (p *Pipeline) encodeRung(
	ctx context.Context,
	logger *slog.Logger,
	job *Job,
	index int,
	rung Rung,
	video, audio int64,
	limit int64,
) (*candidate, bool) {
	for _, codecs := range rung.Codecs {
		started := time.Now()
		attempt := Attempt{
			Rung:         index,
			Codecs:       codecs,
			VideoBitrate: video,
			AudioBitrate: audio,
		}

		out, err := p.twoPass(ctx, logger, job, rung, codecs, video, audio)
		attempt.Elapsed = time.Since(started)
		if err != nil {
			attempt.Err = err.Error()
			job.Attempts = append(job.Attempts, attempt)
			logger.Warn("Encode attempt failed", "rung", index, "codecs", codecs.String(), "error", err)
			continue
		}

		attempt.ResultSize = out.size
		attempt.Success = out.size <= limit
		job.Attempts = append(job.Attempts, attempt)
		logger.Info("Encode attempt finished",
			"rung", index,
			"codecs", codecs.String(),
			"videoBitrate", video,
			"audioBitrate", audio,
			"size", out.size,
			"limit", limit,
		)
		return out, true
	}
	return nil, false
}

func (p *Pipeline) twoPass(
	ctx context.Context,
	logger *slog.Logger,
	job *Job,
	rung Rung,
	codecs CodecPair,
	video, audio int64,
) (*candidate, error) {
	passLog, err := p.scratch.Path("passlog", "")
	if err != nil {
		return nil, err
	}
	defer removePassLogs(logger, passLog)

	output, err := p.scratch.Path("compressed", ".mp4")
	if err != nil {
		return nil, err
	}

	spec := PassSpec{
		Input:        job.InputPath,
		Output:       output,
		PassLog:      passLog,
		Codecs:       codecs,
		VideoBitrate: video,
		AudioBitrate: audio,
		MaxHeight:    rung.MaxHeight,
		MaxFPS:       rung.MaxFPS,
		HasAudio:     job.HasAudio,
	}

	for pass := 1; pass <= 2; pass++ {
		spec.Pass = pass
		res := p.runner.Encode(ctx, PassArgs(spec))
		if !res.OK() {
			if res.Stderr != "" {
				logger.Debug("Encoder stderr", "pass", pass, "codecs", codecs.String(), "stderr", tailLines(res.Stderr, 20))
			}
			removeIntermediate(logger, output)
			return nil, &EncodeAttemptError{
				Codecs:   codecs,
				Pass:     pass,
				ExitCode: res.ExitCode,
				TimedOut: res.TimedOut,
				Err:      res.Err,
			}
		}
	}

	size, err := fileSize(output)
	if err != nil {
		return nil, &EncodeAttemptError{Codecs: codecs, Pass: 2, Err: fmt.Errorf("missing output: %w", err)}
	}
	return &candidate{path: output, size: size}, nil
}

// removePassLogs deletes every statistics file sharing the pass-log prefix.
// x264 writes <prefix>-0.log and <prefix>-0.log.mbtree; x265 writes
// <prefix>.log and <prefix>.log.cutree.
func removeIntermediate(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove intermediate file", "path", path, "error", err)
	}
}

func removePassLogs(logger *slog.Logger, prefix string) {
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		logger.Warn("Failed to list pass logs", "prefix", prefix, "error", err)
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove pass log", "path", m, "error", err)
		}
	}
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, job *Job) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("Failed to record transcode job", "error", err)
	}
}
