// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) ReadSecret(context.Context, secrets.Name) (string, error) {
	return "", errors.New("vault sealed")
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	clientID, _ := tp.ClientCreds()
	tp.SetClientCreds(clientID, "s3cr3t")

	env := map[string]string{
		"TEST_CLIENT_ID":     clientID,
		"TEST_CLIENT_SECRET": "s3cr3t",
	}
	envReader := &secrets.EnvReader{
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}

	tests := []struct {
		name      string
		reader    secrets.Reader
		config    func() *config.ClientConfig
		wantNil   bool
		wantErr   bool
		wantIsErr error
	}{
		{
			name:   "secrets-resolved",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "secret-client")
				c.ClientID = ""
				c.ClientIDSecretName = "TEST-CLIENT-ID"
				c.ClientSecretName = "TEST-CLIENT-SECRET"
				return c
			},
		},
		{
			name:   "client-id-not-found",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "missing-id")
				c.ClientID = ""
				c.ClientIDSecretName = "MISSING-ID"
				return c
			},
			wantNil: true,
		},
		{
			name:   "client-secret-not-found",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "missing-secret")
				c.ClientSecretName = "MISSING-SECRET"
				return c
			},
			wantNil: true,
		},
		{
			name:   "invalid-secret-name",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "bad-name")
				c.ClientSecretName = "bad name!"
				return c
			},
			wantNil: true,
		},
		{
			name:   "secret-backend-error",
			reader: failingReader{},
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "backend-error")
				c.ClientSecretName = "TEST-CLIENT-SECRET"
				return c
			},
			wantErr: true,
		},
		{
			name:   "invalid-authority",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "bad-authority")
				c.Authority = "ftp://auth.example.com"
				return c
			},
			wantNil: true,
		},
		{
			name:   "discovery-fails",
			reader: envReader,
			config: func() *config.ClientConfig {
				c := TestClientConfig(t, tp, "no-discovery")
				c.Authority = tp.Addr() + "/not-an-issuer"
				return c
			},
			wantErr: true,
		},
		{
			name:      "nil-config",
			config:    func() *config.ClientConfig { return nil },
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			r := TestRegistry(t, tp, WithSecretReader(tt.reader))
			got, err := r.Create(context.Background(), tt.config(), "openid profile", "")
			switch {
			case tt.wantErr:
				require.Error(err)
				assert.Nil(got)
				if tt.wantIsErr != nil {
					assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				}
				assert.Equal(0, r.Len())
			case tt.wantNil:
				require.NoError(err)
				assert.Nil(got)
				assert.Equal(0, r.Len())
			default:
				require.NoError(err)
				require.NotNil(got)
				p := got.(*Provider)
				assert.Equal(clientID, p.Config().ClientID)
				assert.Equal(ClientSecret("s3cr3t"), p.Config().ClientSecret)
				assert.Equal(1, r.Len())
			}
		})
	}
}

func TestRegistry_Create_cache(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	r := TestRegistry(t, tp)
	ctx := context.Background()
	c := TestClientConfig(t, tp, "cached-client")

	first, err := r.Create(ctx, c, "openid profile", "")
	require.NoError(err)
	second, err := r.Create(ctx, c, " openid   profile ", "test-scheme")
	require.NoError(err)
	assert.Same(first, second)
	assert.Equal("test-scheme", first.(*Provider).Config().Scheme)

	other, err := r.Create(ctx, c, "openid profile", "other-scheme")
	require.NoError(err)
	assert.NotSame(first, other)
	assert.Equal("other-scheme", other.(*Provider).Config().Scheme)

	email, err := r.Create(ctx, c, "openid email", "")
	require.NoError(err)
	assert.NotSame(first, email)
	assert.Equal(3, r.Len())

	r.Close()
	assert.Equal(0, r.Len())
}

func TestRegistry_Create_concurrent(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tp := StartTestProvider(t)
	r := TestRegistry(t, tp)
	c := TestClientConfig(t, tp, "concurrent-client")

	var wg sync.WaitGroup
	got := make([]Client, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl, err := r.Create(context.Background(), c, "openid", "")
			assert.NoError(err)
			got[i] = cl
		}(i)
	}
	wg.Wait()
	for _, cl := range got[1:] {
		assert.Same(got[0], cl)
	}
	assert.Equal(1, r.Len())
}

func TestRegistry_Create_slowDiscovery(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	r := TestRegistry(t, tp)
	ctx := context.Background()

	cached := TestClientConfig(t, tp, "cached-client")
	want, err := r.Create(ctx, cached, "openid", "")
	require.NoError(err)

	discovering := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(discovering) })
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(slow.Close)
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	slowConfig := TestClientConfig(t, tp, "slow-client")
	slowConfig.Authority = slow.URL
	slowDone := make(chan error, 1)
	go func() {
		_, err := r.Create(ctx, slowConfig, "openid", "")
		slowDone <- err
	}()

	select {
	case <-discovering:
	case <-time.After(10 * time.Second):
		require.FailNow("slow authority never received discovery request")
	}

	cachedDone := make(chan Client, 1)
	go func() {
		got, err := r.Create(ctx, cached, "openid", "")
		assert.NoError(err)
		cachedDone <- got
	}()
	select {
	case got := <-cachedDone:
		assert.Same(want, got)
	case <-time.After(5 * time.Second):
		assert.Fail("cached client was blocked by another client's discovery")
	}

	unblock()
	select {
	case err := <-slowDone:
		require.Error(err)
	case <-time.After(10 * time.Second):
		require.FailNow("slow discovery never returned")
	}
	assert.Equal(1, r.Len())
}
