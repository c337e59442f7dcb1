// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	sdkhttp "github.com/hashicorp/cap-identity/sdk/http"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// ProviderConfig is the resolved configuration of one relying party at one
// identity provider.
type ProviderConfig struct {
	// ClientName names the client in logs and errors.
	ClientName string

	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the optional relying party secret. Public clients
	// leave it empty.
	ClientSecret ClientSecret

	// Issuer is the provider's issuer URL, used for discovery.
	Issuer string

	// Scopes are additional scopes to request. The "openid" scope is always
	// requested.
	Scopes []string

	// Scheme is sent as the scheme authorization parameter when it's not
	// empty.
	Scheme string

	// SupportedSigningAlgs are the accepted id_token signing algorithms.
	// DefaultSigningAlgs are used when it's empty.
	SupportedSigningAlgs []Alg

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string
}

// Validate the provider configuration. It doesn't verify the Issuer is
// discoverable.
func (c *ProviderConfig) Validate() error {
	const op = "ProviderConfig.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			return fmt.Errorf("%s: %s: %w", op, a, ErrUnsupportedSigningAlgorithm)
		}
	}
	return nil
}

// HTTPClient creates a new http client for the provider.
func (c *ProviderConfig) HTTPClient() (*http.Client, error) {
	const op = "ProviderConfig.HTTPClient"
	client, err := sdkhttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

func (c *ProviderConfig) signingAlgs() []string {
	algs := c.SupportedSigningAlgs
	if len(algs) == 0 {
		algs = DefaultSigningAlgs
	}
	ret := make([]string, 0, len(algs))
	for _, a := range algs {
		ret = append(ret, string(a))
	}
	return ret
}

// HTTPClientContext returns a new Context that carries the provided HTTP
// client for github.com/coreos/go-oidc and golang.org/x/oauth2 requests.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	return sdkhttp.OidcClientContext(ctx, client)
}
