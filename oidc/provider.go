// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-identity/session"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// Provider is a Client for one relying party at one identity provider using
// the OIDC authorization code flow with PKCE.
type Provider struct {
	config   *ProviderConfig
	client   *http.Client
	provider *oidc.Provider
	metadata ServerMetadata

	stateExpiry time.Duration
	expirySkew  time.Duration
	uiLocales   []language.Tag
	prompt      string
	logger      hclog.Logger

	mu sync.Mutex

	// backgroundCtx is used by the provider for background activities like
	// refreshing the JWKS key set.
	backgroundCtx       context.Context
	backgroundCtxCancel context.CancelFunc
}

var _ Client = (*Provider)(nil)

// NewProvider creates a Provider, which includes making an http request to
// the provider's issuer for discovery.
//
// See Provider.Done() which must be called to release provider resources.
//
// Supported options: WithStateExpiry, WithExpirySkew, WithUILocales,
// WithPrompt, WithLogger
func NewProvider(ctx context.Context, c *ProviderConfig, opt ...Option) (*Provider, error) {
	const op = "oidc.NewProvider"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// initializing the Provider with its own background ctx, since go-oidc
	// keeps using it to refresh the key set after discovery
	bgCtx, cancel := context.WithCancel(HTTPClientContext(context.Background(), client))
	provider, err := oidc.NewProvider(bgCtx, c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	var md ServerMetadata
	if err := provider.Claims(&md); err != nil {
		cancel()
		return nil, fmt.Errorf("%s: unable to read provider metadata: %w", op, err)
	}
	return &Provider{
		config:              c,
		client:              client,
		provider:            provider,
		metadata:            md,
		stateExpiry:         opts.withStateExpiry,
		expirySkew:          opts.withExpirySkew,
		uiLocales:           opts.withUILocales,
		prompt:              opts.withPrompt,
		logger:              opts.withLogger.Named("provider").With("client", c.ClientName),
		backgroundCtx:       bgCtx,
		backgroundCtxCancel: cancel,
	}, nil
}

// Done with the provider's background resources and must be called for every
// Provider created.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's config.
func (p *Provider) Config() *ProviderConfig {
	cp := *p.config
	return &cp
}

func (p *Provider) oauth2Config(redirectURI string) *oauth2.Config {
	scopes := []string{oidc.ScopeOpenID}
	for _, s := range p.config.Scopes {
		if s != oidc.ScopeOpenID {
			scopes = append(scopes, s)
		}
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURI,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}

func sessionStore(ctx context.Context, r *http.Request) (session.Store, bool) {
	if store, ok := session.FromContext(ctx); ok {
		return store, true
	}
	if r != nil {
		return session.FromContext(r.Context())
	}
	return nil, false
}

// AuthorizeRedirect creates a new authorization state, keeps it in the
// request's session and returns a redirect to the provider's authorization
// endpoint. The redirect carries the state, nonce and PKCE challenge, the
// prompt, the scheme and ui_locales when they're set.
func (p *Provider) AuthorizeRedirect(ctx context.Context, _ http.ResponseWriter, r *http.Request, redirectURI string) (*Response, error) {
	const op = "Provider.AuthorizeRedirect"
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect uri is empty: %w", op, ErrInvalidParameter)
	}
	store, ok := sessionStore(ctx, r)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	st, err := newAuthState(p.config.ClientName, redirectURI, p.stateExpiry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := saveAuthState(store, st); err != nil {
		return nil, fmt.Errorf("%s: unable to save state: %w", op, err)
	}

	authOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(st.Nonce),
		oauth2.S256ChallengeOption(st.Verifier),
	}
	if p.prompt != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	if p.config.Scheme != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("scheme", p.config.Scheme))
	}
	if len(p.uiLocales) > 0 {
		locales := make([]string, 0, len(p.uiLocales))
		for _, l := range p.uiLocales {
			locales = append(locales, l.String())
		}
		authOpts = append(authOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(locales, " ")))
	}
	authURL := p.oauth2Config(redirectURI).AuthCodeURL(st.ID, authOpts...)
	p.logger.Debug("authorization started", "redirect_uri", redirectURI)
	return NewRedirect(authURL), nil
}

// ExchangeToken validates the callback request against the authorization
// state in the session, exchanges the code for tokens, verifies the id_token
// and fetches the userinfo claims when the provider has a userinfo endpoint.
// The authorization state is removed from the session whatever the outcome.
func (p *Provider) ExchangeToken(ctx context.Context, r *http.Request) (*Token, error) {
	const op = "Provider.ExchangeToken"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	store, ok := sessionStore(ctx, r)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	st, err := takeAuthState(store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%s: %s: %s: %w", op, e, q.Get("error_description"), ErrAuthenticationFailed)
	}
	switch {
	case q.Get("state") != st.ID:
		return nil, fmt.Errorf("%s: authentication state and authorization state are not equal: %w", op, ErrResponseStateInvalid)
	case st.IsExpired(p.expirySkew):
		return nil, fmt.Errorf("%s: authentication state is expired: %w", op, ErrExpiredState)
	case q.Get("code") == "":
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}

	oidcCtx := HTTPClientContext(ctx, p.client)
	oauth2Token, err := p.oauth2Config(st.RedirectURI).Exchange(oidcCtx, q.Get("code"), oauth2.VerifierOption(st.Verifier))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	if err := p.VerifyIDToken(oidcCtx, IDToken(rawIDToken), st.Nonce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tk := &Token{IDToken: IDToken(rawIDToken)}
	if p.metadata.UserinfoEndpoint == "" {
		p.logger.Debug("provider has no userinfo endpoint")
		return tk, nil
	}
	ui, err := p.provider.UserInfo(oidcCtx, oauth2.StaticTokenSource(oauth2Token))
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed (%s): %w", op, err, ErrUserInfoFailed)
	}
	userinfo := map[string]any{}
	if err := ui.Claims(&userinfo); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims (%s): %w", op, err, ErrUserInfoFailed)
	}
	tk.Userinfo = userinfo
	return tk, nil
}

// VerifyIDToken verifies the id_token has been signed by the provider for
// this client and carries the nonce.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string) error {
	const op = "Provider.VerifyIDToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: p.config.signingAlgs(),
	})
	idToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, err, ErrIDTokenVerificationFailed)
	}
	if idToken.Nonce != nonce {
		return fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}
	return nil
}

// LoadServerMetadata returns the metadata discovered when the provider was
// created.
func (p *Provider) LoadServerMetadata(_ context.Context) (*ServerMetadata, error) {
	md := p.metadata
	return &md, nil
}

// EndSessionRedirect returns a redirect to
// {end_session_endpoint}?id_token_hint=<t>&post_logout_redirect_uri=<uri>.
func (p *Provider) EndSessionRedirect(ctx context.Context, idToken IDToken, postLogoutRedirectURI string) (*Response, error) {
	const op = "Provider.EndSessionRedirect"
	md, err := p.LoadServerMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	loc, err := EndSessionURL(md.EndSessionEndpoint, idToken, postLogoutRedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.logger.Debug("ending provider session", "redirect_uri", postLogoutRedirectURI)
	return NewRedirect(loc), nil
}

// EndSessionURL builds the end session url for endpoint. Both parameters are
// always present and query encoded, id_token_hint first.
func EndSessionURL(endpoint string, idToken IDToken, postLogoutRedirectURI string) (string, error) {
	const op = "oidc.EndSessionURL"
	if endpoint == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingEndSessionEndpoint)
	}
	params := url.Values{}
	params.Set("id_token_hint", string(idToken))
	params.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode(), nil
}
