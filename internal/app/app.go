// Package app assembles the storage, queue and attendance pieces shared by the binaries.
package app

import (
	"context"
	"fmt"

	"classportal/internal/api"
	"classportal/internal/attendance"
	"classportal/internal/config"
	"classportal/internal/logger"
	"classportal/internal/queue"
	"classportal/internal/store"
)

// Backend holds the opened infrastructure for one process.
type Backend struct {
	Rows     store.Rows
	DB       *store.DB
	Redis    *store.Redis
	Queue    queue.Queue
	Recorder *attendance.Recorder
}

// Open connects the row store and, when configured, redis.
func Open(ctx context.Context, cfg config.App) (*Backend, error) {
	b := &Backend{}
	switch cfg.StoreBackend {
	case "memory":
		b.Rows = store.NewMemoryRows()
		logger.Logger.Warn("using in-memory store; data is lost on restart")
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if err := store.Migrate(ctx, db.Client); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.DB = db
		b.Rows = store.NewSQLRows(db.Client)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	var opts []attendance.Option
	switch cfg.QueueBackend {
	case "redis":
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.Queue = queue.NewRedisQueue(b.Redis.Client, cfg.QueueKey)
		opts = append(opts, attendance.WithGuard(attendance.NewRedisGuard(b.Redis.Client), cfg.JoinGuardTTL))
	case "memory":
		b.Queue = queue.NewInMemory(256)
	case "inline":
	default:
		b.Close()
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
	b.Recorder = attendance.NewRecorder(attendance.NewRepository(b.Rows), opts...)
	return b, nil
}

// Sink returns where join jobs go: the queue when one is configured, else the recorder directly.
func (b *Backend) Sink() attendance.Sink {
	if b.Queue != nil {
		return attendance.QueueSink{Queue: b.Queue}
	}
	return attendance.InlineSink{Recorder: b.Recorder}
}

// Consumer returns a queue consumer, or nil when joins are recorded inline.
func (b *Backend) Consumer() *attendance.Consumer {
	if b.Queue == nil {
		return nil
	}
	return &attendance.Consumer{Queue: b.Queue, Recorder: b.Recorder}
}

// HealthChecks lists the dependencies the process relies on.
func (b *Backend) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if b.DB != nil {
		checks["db"] = b.DB.Healthy
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Healthy
	}
	return checks
}

// Close releases connections.
func (b *Backend) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		_ = b.DB.Close()
	}
}
