// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package claims

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()
	fourClaims := NewSpec("claim1", "claim2", "claim3", "claim4")
	tests := []struct {
		name         string
		raw          map[string]any
		expected     Spec
		wantVerified map[string]any
		wantErrors   map[string]int
	}{
		{
			name:         "numeric-flags",
			raw:          map[string]any{"claim1": "1", "claim2": "0", "claim3": "15", "claim4": "-1"},
			expected:     fourClaims,
			wantVerified: map[string]any{"claim1": true},
			wantErrors:   map[string]int{"claim3": 15},
		},
		{
			name:         "boolean-strings",
			raw:          map[string]any{"claim1": "true", "claim2": "TRUE", "claim3": "false", "claim4": "FALSE"},
			expected:     fourClaims,
			wantVerified: map[string]any{"claim1": true, "claim2": true},
			wantErrors:   map[string]int{},
		},
		{
			name:         "string-values",
			raw:          map[string]any{"claim1": "not_a_number", "claim2": "$peci@l"},
			expected:     NewSpec("claim1", "claim2"),
			wantVerified: map[string]any{"claim1": "not_a_number", "claim2": "$peci@l"},
			wantErrors:   map[string]int{},
		},
		{
			name:         "missing-values",
			raw:          map[string]any{"claim1": "true", "claim3": "1"},
			expected:     NewSpec("claim1", "claim2"),
			wantVerified: map[string]any{"claim1": true},
			wantErrors:   map[string]int{},
		},
		{
			name:         "json-numbers",
			raw:          map[string]any{"claim1": float64(5), "claim2": float64(10), "claim3": float64(100), "claim4": float64(1)},
			expected:     NewSpec("claim1", "claim2", "claim4"),
			wantVerified: map[string]any{"claim4": true},
			wantErrors:   map[string]int{"claim2": 10},
		},
		{
			name:         "go-ints",
			raw:          map[string]any{"claim1": 1, "claim2": int64(12), "claim3": 0, "claim4": 9},
			expected:     fourClaims,
			wantVerified: map[string]any{"claim1": true},
			wantErrors:   map[string]int{"claim2": 12},
		},
		{
			name:         "json-number-type",
			raw:          map[string]any{"claim1": json.Number("1"), "claim2": json.Number("11"), "claim3": json.Number("1.5")},
			expected:     NewSpec("claim1", "claim2", "claim3"),
			wantVerified: map[string]any{"claim1": true, "claim3": "1.5"},
			wantErrors:   map[string]int{"claim2": 11},
		},
		{
			name:         "empty-and-nil",
			raw:          map[string]any{"claim1": "", "claim2": nil},
			expected:     NewSpec("claim1", "claim2"),
			wantVerified: map[string]any{},
			wantErrors:   map[string]int{},
		},
		{
			name:         "go-bools",
			raw:          map[string]any{"claim1": true, "claim2": false},
			expected:     NewSpec("claim1", "claim2"),
			wantVerified: map[string]any{"claim1": true},
			wantErrors:   map[string]int{},
		},
		{
			name:         "unclassifiable-values",
			raw:          map[string]any{"claim1": map[string]any{"a": "b"}, "claim2": []any{"1"}, "claim3": 1.5, "claim4": "1"},
			expected:     fourClaims,
			wantVerified: map[string]any{"claim4": true},
			wantErrors:   map[string]int{},
		},
		{
			name:         "not-integer-strings",
			raw:          map[string]any{"claim1": "+1", "claim2": " 1", "claim3": "1e3"},
			expected:     NewSpec("claim1", "claim2", "claim3"),
			wantVerified: map[string]any{"claim1": "+1", "claim2": " 1", "claim3": "1e3"},
			wantErrors:   map[string]int{},
		},
		{
			name:         "out-of-range-positive-integers",
			raw:          map[string]any{"claim1": "99999999999999999999", "claim2": 1e20, "claim3": json.Number("1e20"), "claim4": uint64(math.MaxUint64)},
			expected:     fourClaims,
			wantVerified: map[string]any{},
			wantErrors:   map[string]int{"claim1": math.MaxInt, "claim2": math.MaxInt, "claim3": math.MaxInt, "claim4": math.MaxInt},
		},
		{
			name:         "out-of-range-negative-integers",
			raw:          map[string]any{"claim1": "-99999999999999999999", "claim2": -1e20, "claim3": json.Number("-99999999999999999999")},
			expected:     NewSpec("claim1", "claim2", "claim3"),
			wantVerified: map[string]any{},
			wantErrors:   map[string]int{},
		},
		{
			name:         "unexpected-claims-ignored",
			raw:          map[string]any{"claim1": "1", "other": "1"},
			expected:     NewSpec("claim1"),
			wantVerified: map[string]any{"claim1": true},
			wantErrors:   map[string]int{},
		},
		{
			name:         "nil-payload",
			raw:          nil,
			expected:     fourClaims,
			wantVerified: map[string]any{},
			wantErrors:   map[string]int{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			got := Evaluate(tt.raw, tt.expected)
			assert.Equal(tt.wantVerified, got.Verified())
			assert.Equal(tt.wantErrors, got.Errors())
			for k, v := range tt.wantVerified {
				assert.True(got.Contains(k))
				assert.Equal(v, got.Get(k, nil))
			}
			for k := range got.Errors() {
				assert.Falsef(got.Contains(k), "%s should not be both verified and an error", k)
			}
		})
	}
}

func TestEvaluate_integerRules(t *testing.T) {
	t.Parallel()
	for n := -20; n <= 30; n++ {
		got := Evaluate(map[string]any{"c": n}, NewSpec("c"))
		switch {
		case n == 1:
			assert.Equalf(t, map[string]any{"c": true}, got.Verified(), "value %d", n)
			assert.Emptyf(t, got.Errors(), "value %d", n)
		case n >= ErrorCodeThreshold:
			assert.Equalf(t, map[string]int{"c": n}, got.Errors(), "value %d", n)
			assert.Emptyf(t, got.Verified(), "value %d", n)
		default:
			assert.Truef(t, got.IsEmpty(), "value %d", n)
		}
	}
}

func TestEvaluate_logsMissingClaims(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Output:     &buf,
		Level:      hclog.Warn,
		JSONFormat: true,
	})
	got := Evaluate(map[string]any{"claim1": "1"}, NewSpec("claim1", "claim2"), WithLogger(logger))
	require.NotNil(got)
	assert.Contains(buf.String(), "userinfo did not contain claim")
	assert.Contains(buf.String(), `"claim":"claim2"`)
	assert.NotContains(buf.String(), `"claim":"claim1"`)
}
