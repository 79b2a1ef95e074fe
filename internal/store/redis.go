package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV is a durable key-value store backed by redis. All keys are
// namespaced under prefix so the tracker never collides with other features.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// ConnectRedis returns nil when addr is empty
func ConnectRedis(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// NewRedisKV wraps a redis client
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

// Get retrieves a value by key.
// Returns empty string if key doesn't exist
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Set stores a value without expiry
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

// Remove deletes a key
func (r *RedisKV) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// MultiGet returns the values of the keys that exist
func (r *RedisKV) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	res, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range res {
		if s, ok := v.(string); ok {
			values[keys[i]] = s
		}
	}
	return values, nil
}

// MultiSet stores all pairs atomically
func (r *RedisKV) MultiSet(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}

	args := make([]any, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, r.key(k), v)
	}

	if err := r.client.MSet(ctx, args...).Err(); err != nil {
		return fmt.Errorf("setting %d keys: %w", len(pairs), err)
	}
	return nil
}

// MultiRemove deletes all given keys
func (r *RedisKV) MultiRemove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}
