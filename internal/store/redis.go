package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "bellsched/internal/log"
)

// RedisKV is the production KV backend. All keys are namespaced with an
// optional prefix.
type RedisKV struct {
	client redis.UniversalClient
	prefix string
}

// OpenRedis connects to the server named by a redis:// or rediss:// URL
// and checks it with PING.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &StoreError{Op: "ping", Key: opts.Addr, Err: err}
	}
	appLog.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return NewRedisKV(client, prefix), nil
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client redis.UniversalClient, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(k string) string { return r.prefix + k }

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "get", Key: key, Err: err}
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// SetGet uses SET ... GET so the swap is a single round trip.
func (r *RedisKV) SetGet(ctx context.Context, key, value string) (string, bool, error) {
	prev, err := r.client.SetArgs(ctx, r.key(key), value, redis.SetArgs{Get: true}).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "setget", Key: key, Err: err}
	}
	return prev, true, nil
}

func (r *RedisKV) Del(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return false, &StoreError{Op: "del", Key: key, Err: err}
	}
	return n > 0, nil
}

func (r *RedisKV) Close() error { return r.client.Close() }
