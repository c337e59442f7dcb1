// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for the relying party side of the OIDC authorization code
flow, as used by the cap-identity login, authorize and logout transitions.

Primary types provided by the package

* Client: the capability a flow needs from one configured identity provider.
It can start an authorization (AuthorizeRedirect), exchange the callback's
authorization code for a Token (ExchangeToken), load the provider's
ServerMetadata and send the user to the provider's end session endpoint
(EndSessionRedirect).

* Factory: creates a Client for a config.ClientConfig. Registry is the
Factory used outside of tests. It resolves client ids and secrets through a
secrets.Reader and caches one discovered Provider per client, scopes and
scheme.

* Provider: a Client backed by github.com/coreos/go-oidc and
golang.org/x/oauth2. Every authorization uses a state, a nonce and a PKCE
verifier which are kept in the user's session until the callback.

* Response: a redirect (or error) response produced by a Client which the
caller writes with Response.Write.

* TestProvider: a local TLS identity provider for tests, see
StartTestProvider.
*/
package oidc
