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
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/push-fanout/internal/app"
	"github.com/kursadbilgin/push-fanout/internal/config"
	"github.com/kursadbilgin/push-fanout/internal/handler"
	"github.com/kursadbilgin/push-fanout/internal/infra/postgresql"
	"github.com/kursadbilgin/push-fanout/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/push-fanout/internal/infra/redis"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "push-fanout-api")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
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

	metrics := observability.NewMetrics()

	pipeline, err := app.BuildPipeline(cfg, db, rdb, logger, metrics)
	if err != nil {
		logger.Fatal("service wiring failed", zap.Error(err))
	}

	server := fiber.New(fiber.Config{
		AppName:               "push-fanout",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(server, map[string]handler.ReadinessCheck{
		"postgres": handler.PostgresCheck(sqlDB),
		"redis":    handler.RedisCheck(rdb),
	})
	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(server, pipeline.Handlers, pipeline.Records); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("push-fanout api started", zap.Int("port", cfg.APIPort))
		serveErr <- server.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
	}

	logger.Info("push-fanout api stopped")
}
