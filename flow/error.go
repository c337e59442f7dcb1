// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrNoSession        = errors.New("no session")

	// ErrConfiguration means the session has no resolvable client config.
	ErrConfiguration = errors.New("no client config in session")

	// ErrClientRegistration means the session's client config resolved but
	// no client could be registered for it.
	ErrClientRegistration = errors.New("client not registered")

	// ErrTokenExchange means the token exchange returned no token and no
	// error.
	ErrTokenExchange = errors.New("token exchange returned no token")

	// ErrAuthorizeRedirect is matched by every *AuthorizeRedirectError.
	ErrAuthorizeRedirect = errors.New("authorize redirect failed")
)

// AuthorizeRedirectError is returned by Login when the authorize redirect is
// missing or has an error status. Status is 0 when there was no response.
type AuthorizeRedirectError struct {
	Status int
	Body   string
}

func (e *AuthorizeRedirectError) Error() string {
	if e.Status == 0 {
		return "authorize_redirect returned no response"
	}
	return fmt.Sprintf("authorize_redirect error response [%d]: %s", e.Status, e.Body)
}

// Unwrap returns ErrAuthorizeRedirect.
func (e *AuthorizeRedirectError) Unwrap() error {
	return ErrAuthorizeRedirect
}
