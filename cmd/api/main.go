package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutlinehq/cutline/internal/assets"
	"github.com/cutlinehq/cutline/internal/cache"
	"github.com/cutlinehq/cutline/internal/config"
	"github.com/cutlinehq/cutline/internal/database"
	"github.com/cutlinehq/cutline/internal/edit"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/middleware"
	"github.com/cutlinehq/cutline/internal/preview"
	"github.com/cutlinehq/cutline/internal/project"
	"github.com/cutlinehq/cutline/internal/queue"
	"github.com/cutlinehq/cutline/internal/session"
	"github.com/cutlinehq/cutline/internal/storage"
	"github.com/cutlinehq/cutline/internal/tracing"
	"github.com/cutlinehq/cutline/internal/upload"
	"github.com/cutlinehq/cutline/internal/webhook"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// sessionSweepInterval is how often idle editing sessions are persisted
// and evicted.
const sessionSweepInterval = time.Minute

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

	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		_, closer, err := tracing.InitTracer("cutline-api", endpoint)
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
	projects := project.NewService(repo, c, logger)
	ffmpeg := media.NewFFmpeg(cfg.Editor.FFmpegPath, cfg.Editor.FFprobePath)
	ingester := assets.NewService(stor, ffmpeg, c, hooks, cfg.Export.TempDir, logger)

	// Elements play straight from presigned storage URLs; ffmpeg reads
	// them without a local copy.
	resolve := func(asset *timeline.Asset) string {
		url, err := stor.GetURL(context.Background(), asset.ContentPath)
		if err != nil {
			return asset.ContentPath
		}
		return url
	}
	previews := preview.NewManager(ffmpeg, resolve, preview.Config{
		Width:     cfg.Editor.PreviewWidth,
		Height:    cfg.Editor.PreviewHeight,
		FrameRate: float64(cfg.Editor.PreviewFrameRate),
	}, logger)

	sessions := session.NewManager(projects, session.Config{
		Edit: edit.Config{
			SnapThresholdPx: cfg.Editor.SnapThresholdPx,
			MinClipDuration: cfg.Editor.MinClipDuration,
			HistoryCapacity: cfg.Editor.HistoryCapacity,
		},
		FrameRate: float64(cfg.Editor.PreviewFrameRate),
		PlayerFor: previews.PlayerFor,
	}, logger)

	uploads := upload.NewManager(cfg.Export.TempDir, upload.DefaultPartSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.Run(ctx, sessionSweepInterval)
	go hooks.RetryWorker(ctx)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				uploads.SweepExpired()
			}
		}
	}()

	api := &API{
		projects: projects,
		sessions: sessions,
		assets:   ingester,
		exports:  repo,
		queue:    q,
		progress: c,
		uploads:  uploads,
		previews: previews,
		health:   db.Health,
		log:      logger,
	}

	router := setupRouter(api, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	// Flush live editing sessions and release preview elements before
	// the process exits.
	previews.CloseAll()
	sessions.SaveAll(shutdownCtx)

	logger.Info("Server stopped")
}
