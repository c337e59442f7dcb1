// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"net/http"

	"github.com/hashicorp/cap-identity/config"
)

// Client is the capability a flow needs from one configured identity
// provider. Implementations read per user state from the session carried by
// the request's context.
type Client interface {
	// AuthorizeRedirect starts an authorization which returns to
	// redirectURI.
	AuthorizeRedirect(ctx context.Context, w http.ResponseWriter, r *http.Request, redirectURI string) (*Response, error)

	// ExchangeToken completes the authorization started by AuthorizeRedirect
	// using the provider's callback request.
	ExchangeToken(ctx context.Context, r *http.Request) (*Token, error)

	// LoadServerMetadata returns the provider's metadata.
	LoadServerMetadata(ctx context.Context) (*ServerMetadata, error)

	// EndSessionRedirect sends the user to the provider's end session
	// endpoint, returning afterwards to postLogoutRedirectURI.
	EndSessionRedirect(ctx context.Context, idToken IDToken, postLogoutRedirectURI string) (*Response, error)
}

// Factory creates the Client for a ClientConfig. Scopes are space delimited
// and a non-empty scheme overrides the config's. Create returns a nil Client
// and no error when the client can't be registered.
type Factory interface {
	Create(ctx context.Context, c *config.ClientConfig, scopes, scheme string) (Client, error)
}

// FactoryFunc adapts a function to a Factory.
type FactoryFunc func(ctx context.Context, c *config.ClientConfig, scopes, scheme string) (Client, error)

// Create calls f.
func (f FactoryFunc) Create(ctx context.Context, c *config.ClientConfig, scopes, scheme string) (Client, error) {
	return f(ctx, c, scopes, scheme)
}
