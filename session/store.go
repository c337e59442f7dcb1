// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

// Store is a key/value store scoped to one browser session. Values are
// strings, bools or maps so they survive a JSON encoded Backend.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Values is an in-memory Store. It's not safe for concurrent use.
type Values map[string]any

var _ Store = Values(nil)

// Get returns the value for key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

// Set stores value for key.
func (v Values) Set(key string, value any) {
	v[key] = value
}

// Delete removes key.
func (v Values) Delete(key string) {
	delete(v, key)
}

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	cp := make(Values, len(v))
	for k, val := range v {
		cp[k] = val
	}
	return cp
}
