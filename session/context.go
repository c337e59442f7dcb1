// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "context"

type storeKey struct{}

// NewContext returns a copy of ctx carrying store.
func NewContext(ctx context.Context, store Store) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

// FromContext returns the Store carried by ctx, if any.
func FromContext(ctx context.Context) (Store, bool) {
	if ctx == nil {
		return nil, false
	}
	store, ok := ctx.Value(storeKey{}).(Store)
	if !ok || store == nil {
		return nil, false
	}
	return store, true
}
