// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		prefix     string
		wantPrefix string
	}{
		{
			name: "no-prefix",
		},
		{
			name:       "with-prefix",
			prefix:     "alice",
			wantPrefix: "alice_",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewID(tt.prefix)
			require.NoError(err)
			assert.Truef(strings.HasPrefix(got, tt.wantPrefix), "NewID() = %v and wanted prefix %s", got, tt.wantPrefix)
			// 24 random bytes, base64 url encoded without padding
			assert.Len(strings.TrimPrefix(got, tt.wantPrefix), 32)

			other, err := NewID(tt.prefix)
			require.NoError(err)
			assert.NotEqual(got, other)
		})
	}
}
