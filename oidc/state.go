// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/cap-identity/session"
	"golang.org/x/oauth2"
)

// KeyAuthState is the session key of the authorization in progress.
const KeyAuthState = "oidc_auth_state"

// authState represents one authorization code flow for a user, from
// AuthorizeRedirect until ExchangeToken. The id and nonce are never equal.
type authState struct {
	ID          string    `json:"id"`
	Nonce       string    `json:"nonce"`
	Verifier    string    `json:"verifier"`
	ClientName  string    `json:"client_name"`
	RedirectURI string    `json:"redirect_uri"`
	Expiration  time.Time `json:"expiration"`
}

func newAuthState(clientName, redirectURI string, expireIn time.Duration) (*authState, error) {
	const op = "oidc.newAuthState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	nonce, err := NewID("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	id, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	return &authState{
		ID:          id,
		Nonce:       nonce,
		Verifier:    oauth2.GenerateVerifier(),
		ClientName:  clientName,
		RedirectURI: redirectURI,
		Expiration:  time.Now().Add(expireIn),
	}, nil
}

// IsExpired returns true if the state expires within skew.
func (s *authState) IsExpired(skew time.Duration) bool {
	return s.Expiration.Before(time.Now().Add(skew))
}

func saveAuthState(store session.Store, s *authState) error {
	const op = "oidc.saveAuthState"
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	store.Set(KeyAuthState, string(b))
	return nil
}

// takeAuthState returns the authorization in progress and removes it from the
// session, so a state is only ever used once.
func takeAuthState(store session.Store) (*authState, error) {
	const op = "oidc.takeAuthState"
	v, ok := store.Get(KeyAuthState)
	store.Delete(KeyAuthState)
	raw, _ := v.(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingState)
	}
	var s authState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%s: unable to decode state (%s): %w", op, err, ErrMissingState)
	}
	return &s, nil
}
