// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package claims

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Result is the outcome of evaluating a claims payload. A Result is never
// modified after it's constructed.
//
// Verified claims map a claim name to either true (a boolean claim that was
// confirmed) or the claim's raw string value. Error claims map a claim name to
// the provider's error code. A claim name never appears in both.
//
// The zero value represents "no claims were checked".
type Result struct {
	verified map[string]any
	errors   map[string]int
}

// NewResult creates a Result from copies of verified and errs. Verified values
// must be true or a string; anything else is dropped. A name present in both
// maps is kept only as an error.
func NewResult(verified map[string]any, errs map[string]int) *Result {
	r := &Result{}
	for k, v := range errs {
		if r.errors == nil {
			r.errors = make(map[string]int, len(errs))
		}
		r.errors[k] = v
	}
	for k, v := range verified {
		if _, isErr := r.errors[k]; isErr {
			continue
		}
		switch tv := v.(type) {
		case bool:
			if !tv {
				continue
			}
		case string:
		default:
			continue
		}
		if r.verified == nil {
			r.verified = make(map[string]any, len(verified))
		}
		r.verified[k] = v
	}
	return r
}

// Contains returns true if name is a verified claim.
func (r *Result) Contains(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.verified[name]
	return ok
}

// Get returns the verified value for name, or def when name isn't verified.
func (r *Result) Get(name string, def any) any {
	if r == nil {
		return def
	}
	if v, ok := r.verified[name]; ok {
		return v
	}
	return def
}

// Verified returns a copy of the verified claims.
func (r *Result) Verified() map[string]any {
	m := map[string]any{}
	if r == nil {
		return m
	}
	for k, v := range r.verified {
		m[k] = v
	}
	return m
}

// Errors returns a copy of the claim error codes.
func (r *Result) Errors() map[string]int {
	m := map[string]int{}
	if r == nil {
		return m
	}
	for k, v := range r.errors {
		m[k] = v
	}
	return m
}

// HasErrors returns true if any claim carried a provider error code.
func (r *Result) HasErrors() bool {
	return r != nil && len(r.errors) > 0
}

// IsEmpty returns true if the result has neither verified claims nor errors.
func (r *Result) IsEmpty() bool {
	return r == nil || (len(r.verified) == 0 && len(r.errors) == 0)
}

// Equal compares two results structurally. A nil Result equals an empty one.
func (r *Result) Equal(other *Result) bool {
	a, b := r.Verified(), other.Verified()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || ov != v {
			return false
		}
	}
	ae, be := r.Errors(), other.Errors()
	if len(ae) != len(be) {
		return false
	}
	for k, v := range ae {
		if ov, ok := be[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String returns a stable, human readable form of the result.
func (r *Result) String() string {
	names := make([]string, 0, len(r.Verified()))
	for k := range r.Verified() {
		names = append(names, k)
	}
	sort.Strings(names)
	codes := make([]string, 0, len(r.Errors()))
	for k, v := range r.Errors() {
		codes = append(codes, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(codes)
	return fmt.Sprintf("verified=%v errors=%v", names, codes)
}

type resultJSON struct {
	Verified map[string]any `json:"verified,omitempty"`
	Errors   map[string]int `json:"errors,omitempty"`
}

// MarshalJSON encodes the result so it can be kept in a session.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return json.Marshal(resultJSON{})
	}
	return json.Marshal(resultJSON{Verified: r.verified, Errors: r.errors})
}

// UnmarshalJSON decodes a result encoded by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	const op = "claims.(Result).UnmarshalJSON"
	var rj resultJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*r = *NewResult(rj.Verified, rj.Errors)
	return nil
}
