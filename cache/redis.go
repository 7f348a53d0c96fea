package cache

import (
	"context"
	"fmt"
	"time"

	"audiowave/config"
	"audiowave/logger"

	"github.com/go-redis/redis/v8"
)

var (
	rdb *redis.Client
	ctx = context.Background()
)

// InitRedis initializes the Redis client used for queue persistence.
func InitRedis(cfg *config.Config) error {
	addr := cfg.RedisHost + ":" + cfg.RedisPort
	rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("[Cache] redis connection established",
		logger.String("addr", addr),
		logger.Int("db", cfg.RedisDB))
	return nil
}

// GetRedisClient returns the shared Redis client.
func GetRedisClient() *redis.Client {
	return rdb
}

// CloseRedis closes the Redis connection.
func CloseRedis() error {
	if rdb == nil {
		return nil
	}
	return rdb.Close()
}
