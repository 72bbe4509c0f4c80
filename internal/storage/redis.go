package storage

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	recordedPrefix = "recorded:"
	robotsPrefix   = "robots:"
	robotsTTL      = 24 * time.Hour
)

// RedisCache remembers which URLs earlier runs persisted and caches robots.txt.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(address string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// MarkRecorded flags urls as persisted. Recorded URLs never expire.
func (rc *RedisCache) MarkRecorded(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	pipe := rc.client.Pipeline()
	for _, u := range urls {
		pipe.Set(ctx, recordedPrefix+u, "1", 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Unrecorded returns the subset of urls not yet marked, preserving order.
func (rc *RedisCache) Unrecorded(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	pipe := rc.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(urls))
	for i, u := range urls {
		cmds[i] = pipe.Exists(ctx, recordedPrefix+u)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]string, 0, len(urls))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			out = append(out, urls[i])
		}
	}
	return out, nil
}

func (rc *RedisCache) SetRobotsTXT(ctx context.Context, origin, content string) error {
	return rc.client.Set(ctx, robotsPrefix+origin, content, robotsTTL).Err()
}

func (rc *RedisCache) GetRobotsTXT(ctx context.Context, origin string) (string, bool, error) {
	content, err := rc.client.Get(ctx, robotsPrefix+origin).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return content, true, nil
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
