package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/push-fanout/internal/app"
	"github.com/kursadbilgin/push-fanout/internal/config"
	"github.com/kursadbilgin/push-fanout/internal/handler"
	"github.com/kursadbilgin/push-fanout/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/push-fanout/internal/infra/redis"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"github.com/kursadbilgin/push-fanout/internal/service"
	"github.com/kursadbilgin/push-fanout/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "push-fanout-worker")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	pipeline, err := app.BuildPipeline(cfg, db, rdb, logger, metrics)
	if err != nil {
		logger.Fatal("service wiring failed", zap.Error(err))
	}

	consumer := queue.NewRabbitMQConsumer(mq, cfg.TriggerPrefetch, logger)
	worker, err := service.NewTriggerWorker(consumer, pipeline.Handlers.HandleTrigger, logger)
	if err != nil {
		logger.Fatal("trigger worker init failed", zap.Error(err))
	}

	ops := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	handler.RegisterHealthRoutes(ops, map[string]handler.ReadinessCheck{
		"postgres": handler.PostgresCheck(sqlDB),
		"redis":    handler.RedisCheck(rdb),
		"rabbitmq": mq.Ping,
	})
	ops.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		if err := ops.Listen(fmt.Sprintf(":%d", cfg.WorkerPort)); err != nil {
			logger.Error("ops server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("push-fanout worker started",
		zap.Strings("queues", queue.WorkQueueNames()),
		zap.Int("prefetch", cfg.TriggerPrefetch),
		zap.Int("opsPort", cfg.WorkerPort),
	)

	if err := worker.Start(ctx); err != nil {
		logger.Error("trigger worker stopped with error", zap.Error(err))
	}

	if err := ops.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}

	logger.Info("push-fanout worker stopped")
}
