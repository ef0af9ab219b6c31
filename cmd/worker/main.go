package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutlinehq/cutline/internal/cache"
	"github.com/cutlinehq/cutline/internal/config"
	"github.com/cutlinehq/cutline/internal/database"
	"github.com/cutlinehq/cutline/internal/export"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/internal/queue"
	"github.com/cutlinehq/cutline/internal/storage"
	"github.com/cutlinehq/cutline/internal/tracing"
	"github.com/cutlinehq/cutline/internal/webhook"
	"github.com/cutlinehq/cutline/pkg/models"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		_, closer, err := tracing.InitTracer("cutline-worker", endpoint)
		if err != nil {
			logger.ErrorWithErr("failed to initialize tracer", err)
		} else {
			defer closer.Close()
		}
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer c.Close()

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.Fatalf("Failed to set up dead letter queue: %v", err)
	}

	hooks := webhook.NewService(repo, logger)
	exporter := export.NewService(cfg.Export, cfg.Editor, repo, stor, c, hooks, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down worker")
		cancel()
	}()

	go hooks.RetryWorker(ctx)

	// Expose worker metrics for scraping.
	metricsSrv := metrics.NewServer(cfg.Metrics.Port, logger)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.ErrorWithErr("metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("metrics server shutdown failed", err)
		}
	}()

	handler := func(req *models.ExportRequest) error {
		logger.WithExportID(req.JobID).WithProjectID(req.ProjectID).Info("processing export")

		if err := exporter.ProcessExport(ctx, req); err != nil {
			logger.WithExportID(req.JobID).ErrorWithErr("export failed, scheduling retry", err)
			// A handler error would nack straight back into the queue;
			// route it through the delayed retry path instead, with the
			// attempt counter deciding when to dead-letter.
			attempts, cntErr := c.IncrementExportAttempts(ctx, req.JobID, 24*time.Hour)
			if cntErr != nil {
				attempts = queue.MaxRetries
			}
			if retryErr := q.PublishExportRetry(ctx, req, attempts); retryErr != nil {
				logger.WithExportID(req.JobID).ErrorWithErr("failed to schedule retry", retryErr)
				return err
			}
			return nil
		}

		logger.WithExportID(req.JobID).Info("export processed")
		return nil
	}

	logger.Infof("Export worker %s started, waiting for jobs", exporter.WorkerID())
	if err := q.ConsumeExports(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume exports: %v", err)
	}

	<-ctx.Done()
	logger.Info("Worker stopped")
}
