// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/cap-identity/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const (
	testRedirectURI   = "https://rp.example.com/cdt/authorize"
	testPostLogoutURI = "https://rp.example.com/cdt/post_logout"
)

func testNewProvider(t *testing.T, tp *TestProvider, opt ...Option) *Provider {
	t.Helper()
	clientID, clientSecret := tp.ClientCreds()
	p, err := NewProvider(context.Background(), &ProviderConfig{
		ClientName:   "test-client",
		ClientID:     clientID,
		ClientSecret: ClientSecret(clientSecret),
		Issuer:       tp.Addr(),
		Scopes:       []string{"openid", "profile"},
		Scheme:       "test-scheme",
		ProviderCA:   tp.CACert(),
	}, opt...)
	require.NoError(t, err)
	t.Cleanup(p.Done)
	return p
}

func testSessionRequest(t *testing.T, target string) (*http.Request, session.Values) {
	t.Helper()
	store := session.Values{}
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return r.WithContext(session.NewContext(r.Context(), store)), store
}

// testAuthorize starts an authorization and returns the provider's callback
// request, sharing the session of the login request.
func testAuthorize(t *testing.T, tp *TestProvider, p *Provider) (*http.Request, session.Values) {
	t.Helper()
	require := require.New(t)
	r, store := testSessionRequest(t, "https://rp.example.com/cdt/login")
	resp, err := p.AuthorizeRedirect(r.Context(), httptest.NewRecorder(), r, testRedirectURI)
	require.NoError(err)
	require.True(resp.IsRedirect())
	callback := tp.Authorize(t, resp.Location)
	cb := httptest.NewRequest(http.MethodGet, callback.String(), nil)
	return cb.WithContext(session.NewContext(cb.Context(), store)), store
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	clientID, _ := tp.ClientCreds()
	tests := []struct {
		name      string
		ctx       context.Context
		config    *ProviderConfig
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "valid",
			config: &ProviderConfig{
				ClientID:   clientID,
				Issuer:     tp.Addr(),
				ProviderCA: tp.CACert(),
			},
		},
		{
			name:      "nil-config",
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name: "bad-ca",
			config: &ProviderConfig{
				ClientID:   clientID,
				Issuer:     tp.Addr(),
				ProviderCA: "not a pem",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidCACert,
		},
		{
			name: "untrusted-issuer",
			config: &ProviderConfig{
				ClientID: clientID,
				Issuer:   tp.Addr(),
			},
			wantErr: true,
		},
		{
			name: "canceled",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			config: &ProviderConfig{
				ClientID:   clientID,
				Issuer:     tp.Addr(),
				ProviderCA: tp.CACert(),
			},
			wantErr:   true,
			wantIsErr: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ctx := tt.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			p, err := NewProvider(ctx, tt.config)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(p)
				if tt.wantIsErr != nil {
					assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				}
				return
			}
			require.NoError(err)
			defer p.Done()
			md, err := p.LoadServerMetadata(ctx)
			require.NoError(err)
			assert.Equal(tp.Addr(), md.Issuer)
			assert.Equal(tp.Addr()+"/end_session", md.EndSessionEndpoint)
			assert.Equal(tp.Addr()+"/userinfo", md.UserinfoEndpoint)
		})
	}
}

func TestProvider_AuthorizeRedirect(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p := testNewProvider(t, tp, WithUILocales(language.English, language.MustParse("es-MX")))

	r, store := testSessionRequest(t, "https://rp.example.com/cdt/login")
	resp, err := p.AuthorizeRedirect(r.Context(), httptest.NewRecorder(), r, testRedirectURI)
	require.NoError(err)
	assert.Equal(http.StatusFound, resp.StatusCode)

	u, err := url.Parse(resp.Location)
	require.NoError(err)
	assert.Equal(tp.Addr()+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	clientID, _ := tp.ClientCreds()
	assert.Equal(clientID, q.Get("client_id"))
	assert.Equal("code", q.Get("response_type"))
	assert.Equal("openid profile", q.Get("scope"))
	assert.Equal(testRedirectURI, q.Get("redirect_uri"))
	assert.Equal("login", q.Get("prompt"))
	assert.Equal("test-scheme", q.Get("scheme"))
	assert.Equal("en es-MX", q.Get("ui_locales"))
	assert.Equal("S256", q.Get("code_challenge_method"))

	st, err := takeAuthState(store)
	require.NoError(err)
	assert.Equal(st.ID, q.Get("state"))
	assert.Equal(st.Nonce, q.Get("nonce"))
	assert.NotEqual(st.ID, st.Nonce)
	assert.Equal(s256Challenge(st.Verifier), q.Get("code_challenge"))
	assert.Equal("test-client", st.ClientName)
	assert.Equal(testRedirectURI, st.RedirectURI)

	_, err = p.AuthorizeRedirect(context.Background(), nil, httptest.NewRequest(http.MethodGet, "/", nil), testRedirectURI)
	assert.Truef(errors.Is(err, ErrNoSession), "wanted \"%s\" but got \"%s\"", ErrNoSession, err)

	_, err = p.AuthorizeRedirect(r.Context(), nil, r, "")
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestProvider_ExchangeToken(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	clientID, _ := tp.ClientCreds()
	tp.SetClientCreds(clientID, "test-secret")
	tp.SetUserinfo(map[string]any{"claim1": "1", "claim2": 10, "claim3": "true"})
	p := testNewProvider(t, tp)

	cb, store := testAuthorize(t, tp, p)
	tk, err := p.ExchangeToken(cb.Context(), cb)
	require.NoError(err)
	assert.NotEmpty(tk.IDToken)
	assert.Equal(map[string]any{"claim1": "1", "claim2": float64(10), "claim3": "true"}, tk.Userinfo)

	_, ok := store.Get(KeyAuthState)
	assert.False(ok)

	// states are single use
	_, err = p.ExchangeToken(cb.Context(), cb)
	require.Error(err)
	assert.Truef(errors.Is(err, ErrMissingState), "wanted \"%s\" but got \"%s\"", ErrMissingState, err)
}

func TestProvider_ExchangeToken_errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		setup     func(tp *TestProvider)
		modify    func(t *testing.T, cb *http.Request, store session.Values) *http.Request
		wantErr   bool
		wantIsErr error
		keepState bool
		check     func(assert *assert.Assertions, tk *Token)
	}{
		{
			name: "no-session",
			modify: func(t *testing.T, cb *http.Request, _ session.Values) *http.Request {
				return httptest.NewRequest(http.MethodGet, cb.URL.String(), nil)
			},
			wantErr:   true,
			wantIsErr: ErrNoSession,
			keepState: true,
		},
		{
			name: "no-state",
			modify: func(t *testing.T, cb *http.Request, store session.Values) *http.Request {
				store.Delete(KeyAuthState)
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrMissingState,
		},
		{
			name: "provider-error",
			modify: func(t *testing.T, cb *http.Request, _ session.Values) *http.Request {
				q := cb.URL.Query()
				q.Set("error", "access_denied")
				q.Set("error_description", "user canceled")
				cb.URL.RawQuery = q.Encode()
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrAuthenticationFailed,
		},
		{
			name: "state-mismatch",
			modify: func(t *testing.T, cb *http.Request, _ session.Values) *http.Request {
				q := cb.URL.Query()
				q.Set("state", "st_forged")
				cb.URL.RawQuery = q.Encode()
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrResponseStateInvalid,
		},
		{
			name: "expired-state",
			modify: func(t *testing.T, cb *http.Request, store session.Values) *http.Request {
				st, err := takeAuthState(store)
				require.NoError(t, err)
				st.Expiration = time.Now().Add(-time.Minute)
				require.NoError(t, saveAuthState(store, st))
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrExpiredState,
		},
		{
			name: "missing-code",
			modify: func(t *testing.T, cb *http.Request, _ session.Values) *http.Request {
				q := cb.URL.Query()
				q.Del("code")
				cb.URL.RawQuery = q.Encode()
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrMissingCode,
		},
		{
			name: "bad-code",
			modify: func(t *testing.T, cb *http.Request, _ session.Values) *http.Request {
				q := cb.URL.Query()
				q.Set("code", "code_unknown")
				cb.URL.RawQuery = q.Encode()
				return cb
			},
			wantErr: true,
		},
		{
			name: "wrong-nonce",
			modify: func(t *testing.T, cb *http.Request, store session.Values) *http.Request {
				st, err := takeAuthState(store)
				require.NoError(t, err)
				st.Nonce = "n_other"
				require.NoError(t, saveAuthState(store, st))
				return cb
			},
			wantErr:   true,
			wantIsErr: ErrInvalidNonce,
		},
		{
			name:      "missing-id-token",
			setup:     func(tp *TestProvider) { tp.OmitIDTokens() },
			wantErr:   true,
			wantIsErr: ErrMissingIDToken,
		},
		{
			name:  "no-userinfo-endpoint",
			setup: func(tp *TestProvider) { tp.DisableUserInfo() },
			check: func(assert *assert.Assertions, tk *Token) {
				assert.NotEmpty(tk.IDToken)
				assert.Nil(tk.Userinfo)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			tp := StartTestProvider(t)
			if tt.setup != nil {
				tt.setup(tp)
			}
			p := testNewProvider(t, tp)
			cb, store := testAuthorize(t, tp, p)
			if tt.modify != nil {
				cb = tt.modify(t, cb, store)
			}
			tk, err := p.ExchangeToken(cb.Context(), cb)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(tk)
				if tt.wantIsErr != nil {
					assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				}
				_, ok := store.Get(KeyAuthState)
				assert.Equal(tt.keepState, ok)
				return
			}
			require.NoError(err)
			tt.check(assert, tk)
		})
	}
}

func TestProvider_EndSessionRedirect(t *testing.T) {
	t.Parallel()
	t.Run("redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p := testNewProvider(t, tp)
		resp, err := p.EndSessionRedirect(context.Background(), IDToken("a.b.c"), testPostLogoutURI)
		require.NoError(err)
		assert.Equal(http.StatusFound, resp.StatusCode)
		assert.Equal(
			tp.Addr()+"/end_session?id_token_hint=a.b.c&post_logout_redirect_uri=https%3A%2F%2Frp.example.com%2Fcdt%2Fpost_logout",
			resp.Location,
		)

		back := tp.Authorize(t, resp.Location)
		assert.Equal(testPostLogoutURI, back.String())
		assert.Equal("a.b.c", tp.LastEndSessionRequest().Get("id_token_hint"))
	})
	t.Run("missing-endpoint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.DisableEndSession()
		p := testNewProvider(t, tp)
		resp, err := p.EndSessionRedirect(context.Background(), IDToken("a.b.c"), testPostLogoutURI)
		require.Error(err)
		assert.Nil(resp)
		assert.True(errors.Is(err, ErrMissingEndSessionEndpoint))
	})
}

func TestEndSessionURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		endpoint  string
		token     IDToken
		uri       string
		want      string
		wantIsErr error
	}{
		{
			name:     "simple",
			endpoint: "https://idp.example.com/logout",
			token:    "tok",
			uri:      "https://rp.example.com/done",
			want:     "https://idp.example.com/logout?id_token_hint=tok&post_logout_redirect_uri=https%3A%2F%2Frp.example.com%2Fdone",
		},
		{
			name:     "empty-token",
			endpoint: "https://idp.example.com/logout",
			uri:      "https://rp.example.com/done",
			want:     "https://idp.example.com/logout?id_token_hint=&post_logout_redirect_uri=https%3A%2F%2Frp.example.com%2Fdone",
		},
		{
			name:     "existing-query",
			endpoint: "https://idp.example.com/logout?tenant=a",
			token:    "tok",
			uri:      "/done",
			want:     "https://idp.example.com/logout?tenant=a&id_token_hint=tok&post_logout_redirect_uri=%2Fdone",
		},
		{
			name:      "missing-endpoint",
			wantIsErr: ErrMissingEndSessionEndpoint,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			got, err := EndSessionURL(tt.endpoint, tt.token, tt.uri)
			if tt.wantIsErr != nil {
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestIDToken_redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := Token{IDToken: "secret.id.token"}
	assert.Equal(RedactedIDToken, tk.IDToken.String())
	b, err := json.Marshal(tk)
	require.NoError(err)
	assert.NotContains(string(b), "secret.id.token")
	assert.Contains(string(b), RedactedIDToken)
}
