// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/cap-identity/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_newAuthState(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		now := time.Now()
		st, err := newAuthState("client", testRedirectURI, time.Minute)
		require.NoError(err)
		assert.True(strings.HasPrefix(st.ID, "st_"))
		assert.True(strings.HasPrefix(st.Nonce, "n_"))
		assert.NotEqual(st.ID, st.Nonce)
		assert.NotEmpty(st.Verifier)
		assert.Equal("client", st.ClientName)
		assert.Equal(testRedirectURI, st.RedirectURI)
		assert.WithinDuration(now.Add(time.Minute), st.Expiration, time.Second)
		assert.False(st.IsExpired(time.Second))
		assert.True(st.IsExpired(2 * time.Minute))
	})
	t.Run("zero-expiry", func(t *testing.T) {
		_, err := newAuthState("client", testRedirectURI, 0)
		assert.True(t, errors.Is(err, ErrInvalidParameter))
	})
}

func Test_takeAuthState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		store     session.Values
		wantIsErr error
	}{
		{
			name:      "missing",
			store:     session.Values{},
			wantIsErr: ErrMissingState,
		},
		{
			name:      "not-a-string",
			store:     session.Values{KeyAuthState: 10},
			wantIsErr: ErrMissingState,
		},
		{
			name:      "not-json",
			store:     session.Values{KeyAuthState: "{"},
			wantIsErr: ErrMissingState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			st, err := takeAuthState(tt.store)
			assert.Nil(st)
			assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
			_, ok := tt.store.Get(KeyAuthState)
			assert.False(ok)
		})
	}
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := session.Values{}
		st, err := newAuthState("client", testRedirectURI, time.Minute)
		require.NoError(err)
		require.NoError(saveAuthState(store, st))
		got, err := takeAuthState(store)
		require.NoError(err)
		assert.Equal(st.ID, got.ID)
		assert.Equal(st.Nonce, got.Nonce)
		assert.Equal(st.Verifier, got.Verifier)
		assert.True(st.Expiration.Equal(got.Expiration))
		_, err = takeAuthState(store)
		assert.True(errors.Is(err, ErrMissingState))
	})
}
