// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capidentity (claims verification for an OpenID Connect relying party)
// provides a collection of related packages which send users to an identity
// provider, evaluate the claims it returns and keep the result in the user's
// session.
//
//   - claims: evaluates expected claims against a userinfo payload
//   - config: client configs, routes and claims requests, and their stores
//   - session: per-user flow state and the session middleware
//   - oidc: providers and the client registry
//   - flow: the login, authorize and logout transitions
//   - handler: the HTTP routes serving the transitions
//
// See cmd/cap-identity for a server wiring them together.
package capidentity
