// Package cache holds the Redis client shared by request throttling.
package cache

import (
	"context"
	"time"

	"bus-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// NewRedisClient connects and pings Redis. It returns nil when Redis is
// disabled or unreachable; callers treat a nil client as "no throttling".
func NewRedisClient(cfg utils.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("Redis disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, continuing without it",
			zap.Error(err),
			zap.String("addr", cfg.Addr),
		)
		_ = client.Close()
		return nil
	}

	log.Info("Redis connected", zap.String("addr", cfg.Addr))
	return client
}
