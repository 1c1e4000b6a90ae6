package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN            string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL            string        `env:"RABBITMQ_URL,required=true"`
	RedisURL               string        `env:"REDIS_URL,required=true"`
	GatewayURL             string        `env:"GATEWAY_URL,required=true"`
	GatewayAuthToken       string        `env:"GATEWAY_AUTH_TOKEN"`
	GatewayTimeout         time.Duration `env:"GATEWAY_TIMEOUT,default=10s"`
	GatewayRateLimitPerSec int           `env:"GATEWAY_RATE_LIMIT_PER_SEC,default=0"`
	AndroidChannelID       string        `env:"ANDROID_CHANNEL_ID,default=linkup_high_importance"`
	DispatchConcurrency    int           `env:"DISPATCH_CONCURRENCY,default=0"`
	TriggerPrefetch        int           `env:"TRIGGER_PREFETCH,default=16"`
	APIPort                int           `env:"API_PORT,default=8080"`
	WorkerPort             int           `env:"WORKER_PORT,default=8081"`
	LogLevel               string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.GatewayTimeout <= 0 {
		return nil, fmt.Errorf("failed to load config: GATEWAY_TIMEOUT must be positive")
	}
	return &cfg, nil
}
