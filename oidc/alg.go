// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "github.com/coreos/go-oidc/v3/oidc"

// Alg represents asymmetric signing algorithms
type Alg string

const (
	// JOSE asymmetric signing algorithm values as defined by RFC 7518.
	//
	// See: https://tools.ietf.org/html/rfc7518#section-3.1
	RS256 Alg = oidc.RS256
	RS384 Alg = oidc.RS384
	RS512 Alg = oidc.RS512
	ES256 Alg = oidc.ES256
	ES384 Alg = oidc.ES384
	ES512 Alg = oidc.ES512
	PS256 Alg = oidc.PS256
	PS384 Alg = oidc.PS384
	PS512 Alg = oidc.PS512
)

var supportedAlgorithms = map[Alg]bool{
	RS256: true,
	RS384: true,
	RS512: true,
	ES256: true,
	ES384: true,
	ES512: true,
	PS256: true,
	PS384: true,
	PS512: true,
}

// DefaultSigningAlgs are the id_token signing algorithms accepted when none
// are configured.
var DefaultSigningAlgs = []Alg{RS256, ES256}
