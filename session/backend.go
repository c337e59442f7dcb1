// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"

	"github.com/jellydator/ttlcache/v3"
)

// Backend persists session Values between requests. Load returns
// ErrNotFound for unknown or expired sessions.
type Backend interface {
	Load(ctx context.Context, id string) (Values, error)
	Save(ctx context.Context, id string, v Values) error
	Destroy(ctx context.Context, id string) error
}

// MemoryBackend keeps sessions in process memory. Each Save restarts a
// session's idle timeout.
type MemoryBackend struct {
	cache *ttlcache.Cache[string, Values]
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a MemoryBackend and starts its expiry loop. Call
// Close to stop it.
//
// Supported options: WithTTL
func NewMemoryBackend(opt ...Option) *MemoryBackend {
	opts := getBackendOpts(opt...)
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Values](opts.withTTL),
		ttlcache.WithDisableTouchOnHit[string, Values](),
	)
	go cache.Start()
	return &MemoryBackend{cache: cache}
}

// Load returns a copy of the session's values.
func (b *MemoryBackend) Load(_ context.Context, id string) (Values, error) {
	const op = "MemoryBackend.Load"
	if id == "" {
		return nil, fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	item := b.cache.Get(id)
	if item == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return item.Value().Clone(), nil
}

// Save stores a copy of v.
func (b *MemoryBackend) Save(_ context.Context, id string, v Values) error {
	const op = "MemoryBackend.Save"
	if id == "" {
		return fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	b.cache.Set(id, v.Clone(), ttlcache.DefaultTTL)
	return nil
}

// Destroy removes the session.
func (b *MemoryBackend) Destroy(_ context.Context, id string) error {
	b.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (b *MemoryBackend) Len() int {
	return b.cache.Len()
}

// Close stops the expiry loop.
func (b *MemoryBackend) Close() {
	b.cache.Stop()
}
