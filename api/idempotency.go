package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores Idempotency-Key reservations in Redis so that every
// instance sees the same keys. A reserved key holds an empty value until the
// create succeeds, then the id of the created task.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, scope, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, key), "", r.ttl).Result()
}

// Complete stores the created task id, keeping the reservation TTL.
func (r *RedisDeduper) Complete(ctx context.Context, scope, key, taskID string) error {
	return r.client.Set(ctx, r.key(scope, key), taskID, redis.KeepTTL).Err()
}

func (r *RedisDeduper) Lookup(ctx context.Context, scope, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Remove deletes a previously recorded key. It is used when the create
// fails so the caller may retry with the same key.
func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}
