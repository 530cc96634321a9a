package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
)

const claimPrefix = "fulfilment_claim:"

// RedisDeduper claims fulfillment keys with SETNX so every instance of the
// service shares one processed-trigger set. A zero ttl writes claims without
// expiry.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

var _ interfaces.TriggerDeduper = (*RedisDeduper)(nil)

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, claimPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, claimPrefix+key).Err()
}
