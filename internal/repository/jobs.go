package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/encore/internal/transcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobSummary is one row of transcode history.
type JobSummary struct {
	ID           string
	InputPath    string
	TargetSize   int64
	OriginalSize int64
	OutputSize   int64
	Duration     float64
	Outcome      string
	Attempts     int
	StartedAt    time.Time
	FinishedAt   time.Time
}

type JobHistory interface {
	List(ctx context.Context, limit int) ([]JobSummary, error)
	Attempts(ctx context.Context, jobID string) ([]transcode.Attempt, error)
}

type PostgresJobRepository struct {
	db *pgxpool.Pool
}

var (
	_ transcode.JobRecorder = (*PostgresJobRepository)(nil)
	_ JobHistory            = (*PostgresJobRepository)(nil)
)

func NewPostgresJobRepository(db *pgxpool.Pool) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func jobToRowParams(job *transcode.Job) []any {
	return []any{
		job.ID,
		job.InputPath,
		job.TargetSize,
		job.OriginalSize,
		job.Duration,
		job.HasAudio,
		job.Outcome.String(),
		job.OutputSize,
		job.StartedAt,
		job.FinishedAt,
	}
}

// Record stores a finished job and its attempts.
func (r *PostgresJobRepository) Record(ctx context.Context, job *transcode.Job) error {
	const jobQuery = `
	INSERT INTO transcode_job (
		id, input_path, target_size, original_size, duration_seconds,
		has_audio, outcome, output_size, started_at, finished_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		outcome = EXCLUDED.outcome,
		output_size = EXCLUDED.output_size,
		finished_at = EXCLUDED.finished_at
	`

	const attemptQuery = `
	INSERT INTO transcode_attempt (
		job_id, seq, rung, video_codec, audio_codec, video_bitrate,
		audio_bitrate, result_size, success, error, elapsed_ms
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (job_id, seq) DO NOTHING
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, jobQuery, jobToRowParams(job)...); err != nil {
		return fmt.Errorf("failed to execute transcode job query: %w", err)
	}

	batch := &pgx.Batch{}
	for i, a := range job.Attempts {
		batch.Queue(attemptQuery,
			job.ID,
			i,
			a.Rung,
			a.Codecs.Video,
			a.Codecs.Audio,
			a.VideoBitrate,
			a.AudioBitrate,
			a.ResultSize,
			a.Success,
			a.Err,
			a.Elapsed.Milliseconds(),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to execute transcode attempt queries: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns the most recent jobs first.
func (r *PostgresJobRepository) List(ctx context.Context, limit int) ([]JobSummary, error) {
	const query = `
	SELECT j.id, j.input_path, j.target_size, j.original_size, j.output_size,
		j.duration_seconds, j.outcome, j.started_at, j.finished_at,
		(SELECT count(*) FROM transcode_attempt a WHERE a.job_id = j.id)
	FROM transcode_job j
	ORDER BY j.started_at DESC
	LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcode jobs: %w", err)
	}

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (JobSummary, error) {
		var j JobSummary
		err := row.Scan(
			&j.ID,
			&j.InputPath,
			&j.TargetSize,
			&j.OriginalSize,
			&j.OutputSize,
			&j.Duration,
			&j.Outcome,
			&j.StartedAt,
			&j.FinishedAt,
			&j.Attempts,
		)
		return j, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcode jobs: %w", err)
	}
	return jobs, nil
}

// Attempts returns a job's attempts in the order they ran.
func (r *PostgresJobRepository) Attempts(ctx context.Context, jobID string) ([]transcode.Attempt, error) {
	const query = `
	SELECT rung, video_codec, audio_codec, video_bitrate, audio_bitrate,
		result_size, success, error, elapsed_ms
	FROM transcode_attempt
	WHERE job_id = $1
	ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcode attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcode.Attempt, error) {
		var a transcode.Attempt
		var elapsedMS int64
		err := row.Scan(
			&a.Rung,
			&a.Codecs.Video,
			&a.Codecs.Audio,
			&a.VideoBitrate,
			&a.AudioBitrate,
			&a.ResultSize,
			&a.Success,
			&a.Err,
			&elapsedMS,
		)
		a.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcode attempts: %w", err)
	}
	return attempts, nil
}

// Prune deletes jobs that started before cutoff and reports how many went.
func (r *PostgresJobRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transcode_job WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcode jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
