// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps JSON encoded sessions in Redis so they can be shared by
// several processes. Each Save restarts a session's idle timeout.
type RedisBackend struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend creates a RedisBackend using client.
//
// Supported options: WithTTL, WithKeyPrefix
func NewRedisBackend(client redis.UniversalClient, opt ...Option) (*RedisBackend, error) {
	const op = "session.NewRedisBackend"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	}
	opts := getBackendOpts(opt...)
	return &RedisBackend{
		client:    client,
		ttl:       opts.withTTL,
		keyPrefix: opts.withKeyPrefix,
	}, nil
}

// OpenRedisBackend connects to the Redis server at url (redis://...) and
// verifies it's reachable.
//
// Supported options: WithTTL, WithKeyPrefix
func OpenRedisBackend(ctx context.Context, url string, opt ...Option) (*RedisBackend, error) {
	const op = "session.OpenRedisBackend"
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse redis url: %w", op, err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: redis ping failed: %w", op, err)
	}
	return NewRedisBackend(client, opt...)
}

func (b *RedisBackend) key(id string) string {
	return b.keyPrefix + id
}

// Load returns the session's values.
func (b *RedisBackend) Load(ctx context.Context, id string) (Values, error) {
	const op = "RedisBackend.Load"
	if id == "" {
		return nil, fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %s: %w", op, err, ErrBackend)
	}
	v := Values{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s: unable to decode session: %s: %w", op, err, ErrBackend)
	}
	return v, nil
}

// Save stores v and restarts the session's idle timeout.
func (b *RedisBackend) Save(ctx context.Context, id string, v Values) error {
	const op = "RedisBackend.Save"
	if id == "" {
		return fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	if v == nil {
		v = Values{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session: %w", op, err)
	}
	if err := b.client.Set(ctx, b.key(id), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %s: %w", op, err, ErrBackend)
	}
	return nil
}

// Destroy removes the session.
func (b *RedisBackend) Destroy(ctx context.Context, id string) error {
	const op = "RedisBackend.Destroy"
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %s: %w", op, err, ErrBackend)
	}
	return nil
}

// Close closes the Redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
