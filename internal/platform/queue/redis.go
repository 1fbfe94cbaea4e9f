package queue

import (
	"context"
	"fmt"

	"bank_ledger/internal/platform/config"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens a client for cfg and verifies the server answers.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close() //nolint: errcheck
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Addr, err)
	}
	log.Info("Successfully connected to Redis", "addr", cfg.Addr)
	return rdb, nil
}

func CloseRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.Warn("Failed to close Redis connection", "error", err)
		return
	}
	log.Info("Redis connection closed.")
}
