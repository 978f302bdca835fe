package service

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Invalidator is told whenever a user's board changed.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// RedisInvalidator publishes the user id on a pub/sub channel so every
// server replica can notify its connected clients.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
}

func NewRedisInvalidator(client *redis.Client, channel string) *RedisInvalidator {
	return &RedisInvalidator{client: client, channel: channel}
}

func (i *RedisInvalidator) Invalidate(ctx context.Context, userID string) {
	_ = i.client.Publish(ctx, i.channel, userID).Err()
}
