package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// RedisStore keeps the snapshot document under a single key.
type RedisStore struct {
	redis *redis.Client
	key   string
	now   func() time.Time
}

// NewRedisStore stores the board under key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if client == nil {
		panic("storage.NewRedisStore: redis client is nil")
	}
	if key == "" {
		key = "board:snapshot"
	}
	return &RedisStore{redis: client, key: key, now: time.Now}
}

func (r *RedisStore) Load(ctx context.Context) ([]domain.Task, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeSnapshot(data)
}

func (r *RedisStore) Save(ctx context.Context, tasks []domain.Task) error {
	data, err := encodeSnapshot(tasks, r.now())
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// ParseRedisOptions accepts either a redis:// URL or the
// "host:port,password=...,ssl=true" form used by managed Redis offerings.
func ParseRedisOptions(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(strings.TrimSpace(kv[1])) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

// NewRedisClient builds a client from a connection string accepted by
// ParseRedisOptions.
func NewRedisClient(conn string) (*redis.Client, error) {
	opts, err := ParseRedisOptions(conn)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
