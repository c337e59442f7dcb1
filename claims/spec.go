// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package claims

import "strings"

// Spec is an ordered set of claim names expected from a provider. Names are
// case-sensitive, unique and never empty.
type Spec []string

// NewSpec builds a Spec from names, dropping empty names and duplicates while
// preserving the order of first appearance.
func NewSpec(names ...string) Spec {
	seen := make(map[string]struct{}, len(names))
	s := make(Spec, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		s = append(s, n)
	}
	return s
}

// ParseSpec builds a Spec from a space-delimited list of claim names, the
// format used for extra claims in stored configuration.
func ParseSpec(spaceDelimited string) Spec {
	return NewSpec(strings.Fields(spaceDelimited)...)
}

// Contains reports whether name is part of the spec.
func (s Spec) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// String returns the space-delimited form of the spec.
func (s Spec) String() string {
	return strings.Join(s, " ")
}
