package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/datalayer"
	"github.com/glizzus/encore/internal/handler"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/opus"
	"github.com/glizzus/encore/internal/player"
	"github.com/glizzus/encore/internal/registry"
	"github.com/glizzus/encore/internal/repository"
	"github.com/glizzus/encore/internal/resolver"
	"github.com/glizzus/encore/internal/schedule"
	"github.com/glizzus/encore/internal/scratch"
	"github.com/glizzus/encore/internal/transcode"
	"github.com/glizzus/encore/internal/voice"
	"github.com/glizzus/encore/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	flowLifetime = 15 * time.Minute
	pruneCron    = "0 4 * * *"
)

type configs struct {
	discord   *config.DiscordConfig
	voice     *config.VoiceConfig
	music     *config.MusicConfig
	transcode *config.TranscodeConfig
	scratch   *config.ScratchConfig
	resolver  *config.ResolverConfig
	media     *config.MediaConfig
}

func loadConfigs() (*configs, error) {
	var c configs
	var err error
	if c.discord, err = config.NewDiscordConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load discord config: %w", err)
	}
	if c.voice, err = config.NewVoiceConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load voice config: %w", err)
	}
	if c.music, err = config.NewMusicConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load music config: %w", err)
	}
	if c.transcode, err = config.NewTranscodeConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load transcode config: %w", err)
	}
	if c.scratch, err = config.NewScratchConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load scratch config: %w", err)
	}
	if err := schedule.ValidateCron(c.scratch.SweepCron); err != nil {
		return nil, fmt.Errorf("SCRATCH_SWEEP_CRON: %w", err)
	}
	if c.resolver, err = config.NewResolverConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load resolver config: %w", err)
	}
	if c.media, err = config.NewMediaConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load media config: %w", err)
	}
	return &c, nil
}

// connectPostgres returns nil when Postgres is not configured.
func connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		slog.Warn("Postgres is not configured, transcode history is disabled", "error", err)
		return nil, nil
	}
	pool, err := datalayer.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return pool, nil
}

// connectMinio returns nil when MinIO is not configured.
func connectMinio(ctx context.Context) (*datalayer.MinioStorage, *config.MinioConfig, error) {
	cfg, err := config.NewMinioConfigFromEnv()
	if err != nil {
		slog.Warn("MinIO is not configured, oversized videos will be rejected", "error", err)
		return nil, nil, nil
	}
	storage, err := datalayer.NewMinioStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	return storage, cfg, nil
}

// connectRedis returns nil when Redis is not configured.
func connectRedis(ctx context.Context) (*redis.Client, *config.RedisConfig, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		slog.Warn("Redis is not configured, stream URLs are cached in memory", "error", err)
		return nil, nil, nil
	}
	client, err := datalayer.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	loggingCfg, err := config.NewLoggingConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load logging config: %w", err)
	}
	logger := loggingCfg.Logger()
	slog.SetDefault(logger)

	cfg, err := loadConfigs()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scratchDir, err := scratch.New(cfg.scratch.Dir, nil)
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	if n, err := scratchDir.Purge(); err != nil {
		slog.Warn("Failed to purge scratch directory", "error", err)
	} else if n > 0 {
		slog.Info("Purged leftover scratch files", "count", n)
	}

	pgPool, err := connectPostgres(ctx)
	if err != nil {
		return err
	}
	var (
		recorder transcode.JobRecorder
		history  repository.JobHistory
		jobRepo  *repository.PostgresJobRepository
	)
	if pgPool != nil {
		defer pgPool.Close()
		jobRepo = repository.NewPostgresJobRepository(pgPool)
		recorder, history = jobRepo, jobRepo
	}

	minioStorage, minioCfg, err := connectMinio(ctx)
	if err != nil {
		return err
	}
	mediaOpts := media.Options{
		TargetSize: cfg.transcode.TargetSize,
		Logger:     logger,
	}
	if minioStorage != nil {
		mediaOpts.Blobs = minioStorage
		mediaOpts.LinkExpiry = minioCfg.LinkExpiry
	}

	redisClient, redisCfg, err := connectRedis(ctx)
	if err != nil {
		return err
	}
	var streamCache resolver.StreamCache = resolver.NewMemoryStreamCache()
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Warn("Failed to close redis client", "error", err)
			}
		}()
		streamCache = resolver.NewRedisStreamCache(redisClient, redisCfg.KeyPrefix)
	}

	session, err := handler.NewSession(cfg.discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	notifier := handler.NewChannelNotifier(session, logger)

	voiceOpts := voice.OptionsFromConfig(cfg.voice, cfg.music)
	voiceOpts.CodecCheck = func() error { return opus.CheckEncoder(cfg.transcode.FFmpegPath) }
	voiceOpts.OnIdleDisconnect = notifier.IdleDisconnected
	voiceOpts.Logger = logger
	reg := registry.NewFromConfig(voice.NewDiscordTransport(session, cfg.voice.SendTimeout), voiceOpts, cfg.music)

	resolverOpts := resolver.OptionsFromConfig(cfg.resolver, cfg.music)
	resolverOpts.Cache = streamCache
	resolverOpts.Logger = logger
	res := resolver.New(&resolver.YTDLPExtractor{Path: cfg.resolver.YTDLPPath}, resolverOpts)

	musicPlayer := player.New(reg, &player.FFmpegOpener{
		Resolver:   res,
		FFmpegPath: cfg.transcode.FFmpegPath,
	}, player.Options{
		IdleTimeout: cfg.voice.IdleTimeout,
		Listener:    notifier,
		Logger:      logger,
	})

	runner := transcode.NewFFmpegRunner(cfg.transcode)
	pipeline, err := transcode.NewPipeline(runner, scratchDir, transcode.Options{
		Tolerance: cfg.transcode.Tolerance,
		MaxRungs:  cfg.transcode.MaxRungs,
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create transcode pipeline: %w", err)
	}

	attachments := &media.HTTPDownloader{Client: http.DefaultClient, MaxSize: cfg.media.MaxDownloadSize}
	jobHandler := &handler.MediaJobHandler{
		Session:     session,
		Links:       media.NewHandler(&media.YTDLPDownloader{Path: cfg.resolver.YTDLPPath}, pipeline, scratchDir, mediaOpts),
		Attachments: media.NewHandler(attachments, pipeline, scratchDir, mediaOpts),
		Fetch:       attachments,
		Prober:      runner,
		Scratch:     scratchDir,
		LinkExpiry:  mediaOpts.LinkExpiry,
		Logger:      logger,
	}
	poolOpts := worker.PoolOptionsFromConfig(cfg.media)
	poolOpts.Logger = logger
	pool := worker.NewPool(jobHandler, poolOpts)
	pool.Start(ctx)

	bot := handler.NewBot(handler.BotOptions{
		Player:     musicPlayer,
		Registry:   reg,
		Resolver:   res,
		Voice:      &handler.StateVoiceLocator{State: session.State},
		Notifier:   notifier,
		Media:      pool,
		MediaLinks: cfg.discord.MediaLinks,
		History:    history,
		Logger:     logger,
	})

	err = schedule.Every(ctx, cfg.scratch.SweepCron, func(context.Context) {
		now := time.Now()
		if n, err := scratchDir.Sweep(cfg.scratch.MaxAge, now); err != nil {
			slog.Warn("Failed to sweep scratch directory", "error", err)
		} else if n > 0 {
			slog.Info("Swept stale scratch files", "count", n)
		}
		if n := bot.Flows().Sweep(now.Add(-flowLifetime)); n > 0 {
			slog.Debug("Dropped abandoned menus", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule scratch sweep: %w", err)
	}

	if jobRepo != nil {
		err = schedule.Every(ctx, pruneCron, func(ctx context.Context) {
			n, err := jobRepo.Prune(ctx, time.Now().Add(-cfg.media.HistoryRetention))
			if err != nil {
				slog.Error("Failed to prune transcode history", "error", err)
				return
			}
			slog.Info("Pruned transcode history", "count", n)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule history pruning: %w", err)
		}
	}

	bot.Handlers().Attach(session)
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close session", "error", err)
		}
	}()

	guildID := cfg.discord.GuildID
	if cfg.discord.RunBotGlobally {
		guildID = ""
	}
	if err := handler.EstablishCommands(session, guildID); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	musicPlayer.Shutdown(shutdownCtx)
	if err := pool.Stop(); err != nil {
		slog.Warn("Media workers stopped with an error", "error", err)
	}
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
