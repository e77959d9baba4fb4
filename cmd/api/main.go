package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"classportal/internal/api"
	"classportal/internal/app"
	"classportal/internal/classes"
	"classportal/internal/config"
	"classportal/internal/logger"
	"classportal/internal/sessionwindow"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Logger.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	// the memory queue lives in this process, so drain it here
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := backend.Consumer().Run(ctx); err != nil {
				logger.Logger.WithError(err).Error("attendance consumer stopped")
			}
		}()
	}

	clock := sessionwindow.SystemClock{}
	sessions := classes.NewService(
		classes.NewRepository(backend.Rows),
		sessionwindow.NewEvaluator(clock, cfg.JoinWindow),
		backend.Sink(),
	)

	r := api.NewRouter(api.Deps{
		Config:     cfg,
		Sessions:   sessions,
		Attendance: backend.Recorder.Repository(),
		Clock:      clock,
		Health:     backend.HealthChecks(),
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: /v1/sessions/stream holds the response open
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.WithError(err).Warn("server forced shutdown")
	}

	logger.Logger.Info("server exited")
	return nil
}
