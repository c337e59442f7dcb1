// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

// Token is the result of a successful authorization code exchange.
type Token struct {
	// IDToken is the verified id_token.
	IDToken IDToken

	// Userinfo are the claims returned by the provider's userinfo endpoint.
	// It's nil when the provider has no userinfo endpoint.
	Userinfo map[string]any
}

// ServerMetadata is the subset of the provider's discovery document a flow
// needs.
type ServerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
}
