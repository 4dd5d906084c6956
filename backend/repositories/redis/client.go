// Package redis provides Redis-backed counter and session stores for
// deployments that run more than one gateway instance.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/signal-admin/backend/config"
	"go.uber.org/zap"
)

// NewClient connects to Redis and verifies the connection with a ping
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
