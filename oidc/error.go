// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter            = errors.New("invalid parameter")
	ErrNilParameter                = errors.New("nil parameter")
	ErrInvalidCACert               = errors.New("invalid CA certificate")
	ErrInvalidIssuer               = errors.New("invalid issuer")
	ErrIDGeneratorFailed           = errors.New("id generation failed")
	ErrNoSession                   = errors.New("no session in request context")
	ErrMissingState                = errors.New("no authorization in progress")
	ErrExpiredState                = errors.New("state is expired")
	ErrResponseStateInvalid        = errors.New("oidc response state")
	ErrMissingCode                 = errors.New("authorization code is missing")
	ErrAuthenticationFailed        = errors.New("provider returned an authentication error")
	ErrMissingIDToken              = errors.New("id_token is missing")
	ErrIDTokenVerificationFailed   = errors.New("id_token verification failed")
	ErrInvalidNonce                = errors.New("invalid nonce")
	ErrNotFound                    = errors.New("not found")
	ErrUserInfoFailed              = errors.New("user info failed")
	ErrMissingEndSessionEndpoint   = errors.New("end_session_endpoint is missing")
	ErrUnsupportedSigningAlgorithm = errors.New("unsupported signing algorithm")
)
