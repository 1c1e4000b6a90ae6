// Package app assembles the dispatch pipeline from process-wide clients.
package app

import (
	"fmt"

	"github.com/kursadbilgin/push-fanout/internal/config"
	"github.com/kursadbilgin/push-fanout/internal/gateway"
	infraredis "github.com/kursadbilgin/push-fanout/internal/infra/redis"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/repository"
	"github.com/kursadbilgin/push-fanout/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Pipeline struct {
	Handlers   *service.EventHandlers
	Dispatcher *service.Dispatcher
	Records    repository.DeliveryRecordRepository
}

// BuildPipeline is called once per process; the db and redis handles are shared by every dispatch.
func BuildPipeline(
	cfg *config.Config,
	db *gorm.DB,
	rdb *goredis.Client,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	gw, err := buildGateway(cfg, rdb)
	if err != nil {
		return nil, err
	}

	return assemble(cfg, gw, repository.NewGormUserRepo(db), repository.NewGormDeliveryRecordRepo(db), stores{
		chats:  repository.NewGormChatRepo(db),
		events: repository.NewGormEventRepo(db),
		badges: repository.NewGormBadgeRepo(db),
	}, logger, metrics)
}

type stores struct {
	chats  repository.ChatRepository
	events repository.EventRepository
	badges repository.BadgeRepository
}

func buildGateway(cfg *config.Config, rdb *goredis.Client) (gateway.Gateway, error) {
	httpGateway, err := gateway.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayAuthToken, cfg.GatewayTimeout)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	if cfg.GatewayRateLimitPerSec <= 0 {
		return httpGateway, nil
	}

	if rdb == nil {
		return nil, fmt.Errorf("gateway rate limit requires redis")
	}
	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.GatewayRateLimitPerSec)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	limited, err := gateway.NewRateLimitedGateway(httpGateway, limiter)
	if err != nil {
		return nil, err
	}
	return limited, nil
}

func assemble(
	cfg *config.Config,
	gw gateway.Gateway,
	users repository.UserRepository,
	records repository.DeliveryRecordRepository,
	s stores,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Pipeline, error) {
	recorder, err := service.NewDeliveryRecorder(records, users)
	if err != nil {
		return nil, err
	}

	dispatcher, err := service.NewDispatcher(
		users,
		gw,
		service.NewPayloadComposer(cfg.AndroidChannelID),
		recorder,
		cfg.DispatchConcurrency,
		logger,
	)
	if err != nil {
		return nil, err
	}
	dispatcher.SetMetrics(metrics)

	handlers, err := service.NewEventHandlers(dispatcher, users, s.chats, s.events, s.badges, logger)
	if err != nil {
		return nil, err
	}
	handlers.SetMetrics(metrics)

	return &Pipeline{
		Handlers:   handlers,
		Dispatcher: dispatcher,
		Records:    records,
	}, nil
}
