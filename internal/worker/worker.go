// Package worker runs media link jobs on a fixed number of goroutines with a
// bounded backlog.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/media"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBacklogFull = errors.New("media backlog is full")
	ErrStopped     = errors.New("worker pool is stopped")
)

type JobKind int

const (
	// JobDeliver fits the linked video under the upload limit and posts it.
	JobDeliver JobKind = iota
	// JobInspect reports the linked file's container and streams.
	JobInspect
)

// Job is one media link to process. Jobs that came from a slash command
// carry the Interaction to answer; jobs found in chat reply to MessageID.
type Job struct {
	ID          string
	Kind        JobKind
	GuildID     string
	ChannelID   string
	MessageID   string
	Link        media.Link
	Interaction *discordgo.Interaction
	EnqueuedAt  time.Time
}

type JobHandler interface {
	HandleJob(ctx context.Context, job Job) error
}

type JobHandlerFunc func(ctx context.Context, job Job) error

func (f JobHandlerFunc) HandleJob(ctx context.Context, job Job) error {
	return f(ctx, job)
}

type PoolOptions struct {
	Workers int
	Backlog int
	// JobTimeout bounds a single job. Zero means no limit.
	JobTimeout time.Duration
	Logger     *slog.Logger
}

func PoolOptionsFromConfig(cfg *config.MediaConfig) PoolOptions {
	return PoolOptions{
		Workers:    cfg.Workers,
		Backlog:    cfg.Backlog,
		JobTimeout: cfg.JobTimeout,
	}
}

type Pool struct {
	handler JobHandler
	opts    PoolOptions
	logger  *slog.Logger
	jobs    chan Job

	mu      sync.RWMutex
	started bool
	stopped bool
	group   *errgroup.Group
}

func NewPool(handler JobHandler, opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Backlog < 0 {
		opts.Backlog = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		handler: handler,
		opts:    opts,
		logger:  logger.With("component", "worker"),
		jobs:    make(chan Job, opts.Backlog),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.group, ctx = errgroup.WithContext(ctx)
	for i := range p.opts.Workers {
		p.group.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	p.logger.Info("Started media workers", "workers", p.opts.Workers, "backlog", p.opts.Backlog)
}

// Submit queues job without blocking. It fails with ErrBacklogFull when every
// worker is busy and the backlog has no room.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Stop refuses new jobs and waits for queued ones to finish.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	group := p.group
	p.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	logger := p.logger.With("worker", worker)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, logger, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, logger *slog.Logger, job Job) {
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	logger = logger.With("jobID", job.ID, "guildID", job.GuildID, "url", job.Link.URL)
	logger.Debug("Handling media job", "waited", time.Since(job.EnqueuedAt))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Media job panicked", "panic", r)
		}
	}()

	started := time.Now()
	if err := p.handler.HandleJob(ctx, job); err != nil {
		logger.Warn("Media job failed", "error", err, "elapsed", time.Since(started))
		return
	}
	logger.Info("Media job finished", "elapsed", time.Since(started))
}
