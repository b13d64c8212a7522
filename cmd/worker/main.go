package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/cache"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/captions"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/content"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/queue"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/storage"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/tracing"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/transcoder"
)

const queueDepthInterval = 15 * time.Second

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger, _ := logging.NewDefaultLogger()
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fallback, _ := logging.NewDefaultLogger()
		fallback.Fatalf("Failed to initialize logger: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	_, tracerCloser, err := tracing.Init(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db, logger)

	// Initialize progress cache
	progress, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Worker.ProgressTTL)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer progress.Close()

	// Initialize storage
	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	generator, err := content.NewGenerator(content.Config{
		APIKey:  cfg.Content.APIKey,
		Model:   cfg.Content.Model,
		Timeout: cfg.Content.Timeout,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize content generator: %v", err)
	}

	ffmpeg := transcoder.NewFFmpeg(transcoder.Options{
		FFmpegPath:       cfg.Transcoder.FFmpegPath,
		FFprobePath:      cfg.Transcoder.FFprobePath,
		Preset:           cfg.Transcoder.Preset,
		CRF:              cfg.Transcoder.CRF,
		ProbeTimeout:     cfg.Transcoder.ProbeTimeout,
		TransformTimeout: cfg.Transcoder.TransformTimeout,
	}, logger)

	worker := pipeline.NewWorker(pipeline.Dependencies{
		Store:       repo,
		Content:     generator,
		Transformer: ffmpeg,
		Burner:      captions.NewBurner(ffmpeg, cfg.Transcoder.BurnTimeout, logger),
		Storage:     store,
		Progress:    progress,
	}, cfg.Transcoder.TempDir, logger)

	harness := pipeline.NewHarness(worker, repo, progress, cfg.Transcoder.TempDir, logger)

	// Ops server
	ops := metrics.NewServer(cfg.Ops.Addr(), repo, progress, map[string]metrics.HealthCheck{
		"database": db.Health,
		"redis":    progress.Ping,
	}, logger)
	go func() {
		if err := ops.Start(); err != nil {
			logger.Errorf("Ops server stopped: %v", err)
		}
	}()

	go reportQueueDepth(ctx, q, logger)

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Start consuming jobs
	err = q.Consume(ctx, queue.ConsumeOptions{
		Concurrency: cfg.Worker.Concurrency,
		JobTimeout:  cfg.Worker.JobTimeout,
	}, harness.Handle, harness.TerminalFailure)
	if err != nil {
		logger.Fatalf("Failed to consume jobs: %v", err)
	}
	logger.WithField("concurrency", cfg.Worker.Concurrency).Info("Worker started, waiting for jobs...")

	// Wait for shutdown
	<-ctx.Done()
	q.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
	defer shutdownCancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Ops server shutdown failed: %v", err)
	}

	logger.Info("Worker stopped")
}

func reportQueueDepth(ctx context.Context, q *queue.Queue, logger *logging.Logger) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.Depth()
			if err != nil {
				logger.WithError(err).Warn("Failed to read queue depth")
				continue
			}
			dead, err := q.DLQDepth()
			if err != nil {
				logger.WithError(err).Warn("Failed to read dead letter queue depth")
				continue
			}
			metrics.UpdateQueueDepth(depth, dead)
		}
	}
}
