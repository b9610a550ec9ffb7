package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue is a FIFO list: producers LPUSH, the worker BRPOPs.
type RedisQueue struct {
	redis *redis.Client
	key   string
}

func NewRedisQueue(redisClient *redis.Client, key string) *RedisQueue {
	return &RedisQueue{redis: redisClient, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, payloads ...string) error {
	if len(payloads) == 0 {
		return nil
	}
	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		values[i] = p
	}
	return q.redis.LPush(ctx, q.key, values...).Err()
}

// Pop waits up to timeout for a job. It returns nil, nil when none arrived.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies with the key followed by the value.
	return decode(res[1])
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}
