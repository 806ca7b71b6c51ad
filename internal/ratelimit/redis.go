package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chronos:login:"

// countAttempt starts the window on the first hit only, so later attempts
// never extend it.
var countAttempt = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis counts attempts per key in a fixed window shared by every process
// using the same server.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// Dial connects to redisURL and verifies the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client, perMinute int) *Redis {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Redis{client: client, limit: int64(perMinute), window: time.Minute}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	n, err := countAttempt.Run(ctx, r.client, []string{keyPrefix + key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("count attempt: %w", err)
	}
	return n <= r.limit, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
