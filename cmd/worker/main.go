// Package main runs the background job worker that archives closed polls.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-stage/backend/config"
	"github.com/aura-stage/backend/internal/polls"
	"github.com/aura-stage/backend/internal/worker"
	"github.com/aura-stage/backend/pkg/database"
	"github.com/aura-stage/backend/pkg/queue"
	"github.com/aura-stage/backend/pkg/redis"
	"github.com/aura-stage/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Database.Enabled() || cfg.Redis.Addr == "" {
		logger.Fatal("worker needs DATABASE_URL (or DB_HOST) and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, PoolSize: cfg.Redis.PoolSize}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var exporter worker.Exporter
	if cfg.AWS.Region != "" && cfg.AWS.ResultsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ResultsBucket:   cfg.AWS.ResultsBucket,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		exporter = s3Client
	} else {
		logger.Info("results export disabled (AWS_REGION or AWS_S3_RESULTS_BUCKET not set)")
	}

	processor := worker.NewArchiveProcessor(
		polls.NewRepository(pool),
		exporter,
		queue.NewQueue(rdb.Client, logger),
		logger,
	)
	logger.Info("worker started")
	processor.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
