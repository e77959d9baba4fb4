package main

import (
	"context"
	"os/signal"
	"syscall"

	"classportal/internal/app"
	"classportal/internal/config"
	"classportal/internal/logger"
)

// Worker drains attendance join jobs from the shared redis queue.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	if cfg.QueueBackend != "redis" {
		logger.Logger.WithField("queue_backend", cfg.QueueBackend).
			Fatal("worker needs QUEUE_BACKEND=redis; other backends record in the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Logger.WithError(err).Fatal("backend init failed")
	}
	defer backend.Close()

	if !backend.Redis.Healthy(ctx) {
		logger.Logger.Warn("redis not reachable yet; consumer will keep retrying")
	}

	logger.Logger.Info("worker started, waiting for join jobs")
	if err := backend.Consumer().Run(ctx); err != nil {
		logger.Logger.WithError(err).Error("consumer stopped")
	}
	logger.Logger.Info("worker stopped")
}
