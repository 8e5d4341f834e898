// Package main runs the live-event engine: HTTP and WebSocket server, tick scheduler and
// rate-limit sweeper, with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aura-stage/backend/config"
	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/polls"
	"github.com/aura-stage/backend/internal/server"
	"github.com/aura-stage/backend/pkg/database"
	"github.com/aura-stage/backend/pkg/queue"
	"github.com/aura-stage/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		JWT:    auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours),
		Logger: logger,
	}

	if cfg.Database.Enabled() {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		authRepo := auth.NewRepository(pool)
		deps.Passwords = authRepo
		deps.Writer = authRepo
		deps.Results = polls.NewRepository(pool)
	} else {
		logger.Warn("database not configured: avtech passwords use the fallback hash, results are not archived")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, PoolSize: cfg.Redis.PoolSize}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		deps.Archiver = queue.NewQueue(rdb.Client, logger)
	}

	srv := server.New(cfg, deps)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv.Scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		srv.Limiter.Run(gctx, cfg.Realtime.RateLimitSweep)
		return nil
	})
	g.Go(func() error {
		srv.Publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
