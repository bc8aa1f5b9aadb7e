package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared by every API replica, built on
// INCR and EXPIRE. Keys look like rl:<window_seconds>:<identifier>.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client *redis.Client, config Config) *Redis {
	config = config.withDefaults()
	return &Redis{
		client: client,
		limit:  config.Limit,
		window: config.Window,
		prefix: "rl:" + strconv.FormatInt(int64(config.Window.Seconds()), 10) + ":",
	}
}

// DialRedis parses url, pings the server and returns the client.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *Redis) Backend() string { return "redis" }

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, err
		}
	}
	return n <= int64(l.limit), nil
}
