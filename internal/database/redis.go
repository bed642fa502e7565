package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits session locks and hub pub/sub onto separate
// clients. Every open subscription pins a pooled connection for as long as a
// socket is attached, so sharing one pool would let many idle websockets
// starve the SET NX and release calls that gate each chat send. The clients
// are named so the two roles can be told apart in CLIENT LIST.
type RedisClients struct {
	Guard  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	guardOpt := *opt
	guardOpt.ClientName = "kidchat-guard"
	guardClient := redis.NewClient(&guardOpt)
	if err := guardClient.Ping(ctx).Err(); err != nil {
		guardClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (guard): %w", err)
	}

	pubsubOpt := *opt
	pubsubOpt.ClientName = "kidchat-pubsub"
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		guardClient.Close()
		pubsubClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Guard:  guardClient,
		PubSub: pubsubClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Guard.Close()
	r.PubSub.Close()
}
