package redis

import (
	"context"
	"time"

	"gavel-auction-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient builds the shared Redis client behind the schedule store and
// the notifier. Timeouts stay well under the scheduler tick so a slow
// Redis degrades one tick instead of backing up the loop.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     2 * time.Second,
		ReadTimeout:     500 * time.Millisecond,
		WriteTimeout:    500 * time.Millisecond,
		PoolSize:        16,
		MinIdleConns:    2,
		MaxRetries:      2,
		MinRetryBackoff: 20 * time.Millisecond,
		MaxRetryBackoff: 200 * time.Millisecond,
	})
}

// Ping verifies the connection before the scheduler starts depending on it
func Ping(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return client.Ping(ctx).Err()
}
