// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store looks up persisted ClientConfigs. Lookup returns ErrNotFound when
// there's no config for the id.
type Store interface {
	Lookup(ctx context.Context, id int64) (*ClientConfig, error)
}

// Repository is a Store which can also create and list configs.
type Repository interface {
	Store
	LookupByName(ctx context.Context, clientName string) (*ClientConfig, error)
	Create(ctx context.Context, c *ClientConfig) (*ClientConfig, error)
	List(ctx context.Context) ([]*ClientConfig, error)
}

// MemoryStore is an in-memory Repository. It's safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	configs map[int64]*ClientConfig
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  NoClientConfig + 1,
		configs: map[int64]*ClientConfig{},
	}
}

// Lookup returns a copy of the config with the id.
func (s *MemoryStore) Lookup(_ context.Context, id int64) (*ClientConfig, error) {
	const op = "MemoryStore.Lookup"
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return nil, fmt.Errorf("%s: client config %d: %w", op, id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// LookupByName returns a copy of the config with the client name.
func (s *MemoryStore) LookupByName(_ context.Context, clientName string) (*ClientConfig, error) {
	const op = "MemoryStore.LookupByName"
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.configs {
		if c.ClientName == clientName {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: client config %q: %w", op, clientName, ErrNotFound)
}

// Create validates and stores a copy of c, returning it with its assigned
// ID. The ID of c is ignored.
func (s *MemoryStore) Create(_ context.Context, c *ClientConfig) (*ClientConfig, error) {
	const op = "MemoryStore.Create"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.configs {
		if existing.ClientName == c.ClientName {
			return nil, fmt.Errorf("%s: client name %q: %w", op, c.ClientName, ErrDuplicateClientName)
		}
	}
	cp := *c
	cp.ID = s.nextID
	s.nextID++
	s.configs[cp.ID] = &cp
	ret := cp
	return &ret, nil
}

// List returns copies of every config ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]*ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*ClientConfig, 0, len(s.configs))
	for _, c := range s.configs {
		cp := *c
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}
