// redis.go -- shared go-redis client setup.
//
// One client (and therefore one connection pool) is created at startup and
// shared by the attempt tracker and the async mail queue.
package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies connectivity with a ping.
// Call once at startup from main.go; the returned client is safe for
// concurrent use. Caller owns Close.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}
