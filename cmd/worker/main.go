package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campushub/internal/app"
	"campushub/internal/blob"
	"campushub/internal/config"
	"campushub/internal/logging"
	"campushub/internal/store"
)

// Worker retries storage deletes that failed while rows were removed.
func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Error("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
		os.Exit(1)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consuming will retry", "addr", cfg.RedisAddr)
	}

	blobs, _, err := app.Storage(cfg)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}

	janitor := &blob.Janitor{
		Store:      blobs,
		Queue:      app.Queue(cfg, redisClient),
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	}
	logger.Info("worker started, waiting for cleanup jobs")
	if err := janitor.Run(ctx); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
