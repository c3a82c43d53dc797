package db

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis and verifies the connection with a ping.
// Caller must call Close when done.
func OpenRedis(ctx context.Context, addr, password string, database int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
