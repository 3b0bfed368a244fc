// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package store

import (
	"context"
	"errors"
	"time"

	apperrors "classpass/cli/internal/errors"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the record under a single key. SET replaces the value atomically.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	owned  bool
}

// RedisOption customizes a Redis store.
type RedisOption func(*Redis)

// WithTTL makes the key expire ttl after each write. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// DialRedis connects to addr (host:port or a redis:// URL) and pings it.
func DialRedis(ctx context.Context, addr, key string, opts ...RedisOption) (*Redis, error) {
	var ropts *redis.Options
	if u, err := redis.ParseURL(addr); err == nil {
		ropts = u
	} else {
		ropts = &redis.Options{Addr: addr}
	}
	ropts.DialTimeout = 5 * time.Second
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "connect to redis "+ropts.Addr, err)
	}
	r := NewRedis(client, key, opts...)
	r.owned = true
	return r, nil
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, key string, opts ...RedisOption) *Redis {
	r := &Redis{client: client, key: key}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Close closes the client when it was opened by DialRedis.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "redis get", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (r *Redis) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "redis set", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "redis del", err)
	}
	return nil
}
