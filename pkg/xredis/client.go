package xredis

import (
	"context"
	"strconv"
	"time"

	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/redis/go-redis/v9"
)

type Client interface {
	// Sorted set
	ZAdd(ctx context.Context, key string, z redis.Z) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRangeByScore(ctx context.Context, key string, max float64, limit int) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)

	Close() error
}

type client struct {
	redisClient *redis.Client
}

func NewClient(ctx context.Context) (*client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:            xcontext.Configs(ctx).Redis.Addr,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolFIFO:        false,
		PoolSize:        5,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &client{redisClient: redisClient}, nil
}

func (c *client) ZAdd(ctx context.Context, key string, z redis.Z) error {
	return c.redisClient.ZAdd(ctx, key, z).Err()
}

func (c *client) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}

	return c.redisClient.ZRem(ctx, key, args...).Err()
}

// ZRangeByScore returns at most limit members whose score is lower than or
// equal to max, lowest score first.
func (c *client) ZRangeByScore(ctx context.Context, key string, max float64, limit int) ([]string, error) {
	return c.redisClient.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: int64(limit),
	}).Result()
}

func (c *client) ZScore(ctx context.Context, key, member string) (float64, error) {
	return c.redisClient.ZScore(ctx, key, member).Result()
}

func (c *client) Close() error {
	return c.redisClient.Close()
}
