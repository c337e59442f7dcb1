// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/cap-identity/claims"
	"github.com/hashicorp/cap-identity/config"
)

// Keys of the OIDC fields kept in a session Store.
const (
	KeyAuthorizeFail    = "oidc_authorize_fail"
	KeyAuthorizeSuccess = "oidc_authorize_success"
	KeyScopes           = "oidc_scopes"
	KeyScheme           = "oidc_scheme"
	KeyEligibilityClaim = "oidc_eligibility_claim"
	KeyExtraClaims      = "oidc_extra_claims"
	KeyPostLogout       = "oidc_post_logout"
	KeyClientConfig     = "oidc_client_config"
	KeyToken            = "oidc_token"
	KeyClaimsResult     = "oidc_claims_result"
	KeyClaimsChecked    = "oidc_claims_checked"
)

// State is a typed view of the OIDC fields of one browser session. Every
// accessor reads or writes the underlying Store directly, so several States
// over the same Store always agree. Missing fields read as their defaults.
type State struct {
	store Store
}

// New creates a State over store. A nil store is replaced with an empty
// Values.
//
// Supported options: WithAuthorizeFail, WithAuthorizeSuccess, WithScopes,
// WithScheme, WithReset
func New(store Store, opt ...Option) *State {
	if store == nil {
		store = Values{}
	}
	opts := getStateOpts(opt...)
	s := &State{store: store}
	if opts.withReset {
		s.reset()
	}
	if opts.withAuthorizeFail != "" {
		s.SetAuthorizeFail(opts.withAuthorizeFail)
	}
	if opts.withAuthorizeSuccess != "" {
		s.SetAuthorizeSuccess(opts.withAuthorizeSuccess)
	}
	if opts.withScheme != "" {
		s.SetScheme(opts.withScheme)
	}
	if opts.withScopes != "" {
		s.SetScopes(opts.withScopes)
	}
	return s
}

func (s *State) reset() {
	s.SetEligibilityClaim("")
	s.SetExtraClaims("")
	s.SetPostLogoutRoute("")
	s.SetScheme("")
	s.SetScopes("")
	s.ClearToken()
}

// Store returns the underlying session Store.
func (s *State) Store() Store {
	return s.store
}

func (s *State) getString(key string) string {
	v, ok := s.store.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// AuthorizeFail is the route to redirect to when authorization fails.
func (s *State) AuthorizeFail() string { return s.getString(KeyAuthorizeFail) }

// SetAuthorizeFail sets the route to redirect to when authorization fails.
func (s *State) SetAuthorizeFail(route string) { s.store.Set(KeyAuthorizeFail, route) }

// AuthorizeSuccess is the route to redirect to when authorization succeeds.
func (s *State) AuthorizeSuccess() string { return s.getString(KeyAuthorizeSuccess) }

// SetAuthorizeSuccess sets the route to redirect to when authorization
// succeeds.
func (s *State) SetAuthorizeSuccess(route string) { s.store.Set(KeyAuthorizeSuccess, route) }

// Scopes are the space delimited scopes requested during login.
func (s *State) Scopes() string { return s.getString(KeyScopes) }

// SetScopes sets the space delimited scopes requested during login.
func (s *State) SetScopes(scopes string) { s.store.Set(KeyScopes, scopes) }

// Scheme overrides the client's scheme when it's not empty.
func (s *State) Scheme() string { return s.getString(KeyScheme) }

// SetScheme sets the scheme override.
func (s *State) SetScheme(scheme string) { s.store.Set(KeyScheme, scheme) }

// EligibilityClaim names the claim whose verified presence grants access.
func (s *State) EligibilityClaim() string { return s.getString(KeyEligibilityClaim) }

// SetEligibilityClaim sets the eligibility claim name.
func (s *State) SetEligibilityClaim(name string) { s.store.Set(KeyEligibilityClaim, name) }

// ExtraClaims are space delimited claims evaluated alongside the eligibility
// claim.
func (s *State) ExtraClaims() string { return s.getString(KeyExtraClaims) }

// SetExtraClaims sets the space delimited extra claims.
func (s *State) SetExtraClaims(names string) { s.store.Set(KeyExtraClaims, names) }

// PostLogoutRoute overrides the module's post logout route when it's not
// empty.
func (s *State) PostLogoutRoute() string { return s.getString(KeyPostLogout) }

// SetPostLogoutRoute sets the post logout route override.
func (s *State) SetPostLogoutRoute(route string) { s.store.Set(KeyPostLogout, route) }

// Token is the last identity token, or "".
func (s *State) Token() string { return s.getString(KeyToken) }

// SetToken sets the identity token.
func (s *State) SetToken(token string) { s.store.Set(KeyToken, token) }

// ClientConfigID is the stored ClientConfig reference, or
// config.NoClientConfig.
func (s *State) ClientConfigID() int64 {
	v, ok := s.store.Get(KeyClientConfig)
	if !ok {
		return config.NoClientConfig
	}
	var id int64
	switch tv := v.(type) {
	case string:
		n, err := strconv.ParseInt(tv, 10, 64)
		if err != nil {
			return config.NoClientConfig
		}
		id = n
	case int64:
		id = tv
	case int:
		id = int64(tv)
	case float64:
		id = int64(tv)
	default:
		return config.NoClientConfig
	}
	return id
}

// SetClientConfigID stores a reference to a ClientConfig.
func (s *State) SetClientConfigID(id int64) {
	s.store.Set(KeyClientConfig, strconv.FormatInt(id, 10))
}

// SetClientConfig stores a reference to c, or clears it when c is nil.
func (s *State) SetClientConfig(c *config.ClientConfig) {
	if c == nil {
		s.SetClientConfigID(config.NoClientConfig)
		return
	}
	s.SetClientConfigID(c.ID)
}

// ClientConfig resolves the stored reference through store. A missing or
// stale reference returns false and no error.
func (s *State) ClientConfig(ctx context.Context, store config.Store) (*config.ClientConfig, bool, error) {
	const op = "State.ClientConfig"
	if store == nil {
		return nil, false, fmt.Errorf("%s: client config store is nil: %w", op, ErrNilParameter)
	}
	id := s.ClientConfigID()
	if id == config.NoClientConfig {
		return nil, false, nil
	}
	c, err := store.Lookup(ctx, id)
	switch {
	case errors.Is(err, config.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("%s: %w", op, err)
	case c == nil:
		return nil, false, nil
	}
	return c, true, nil
}

// ClaimsResult is the last claims result, or an empty Result.
func (s *State) ClaimsResult() *claims.Result {
	raw := s.getString(KeyClaimsResult)
	if raw == "" {
		return claims.NewResult(nil, nil)
	}
	var r claims.Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return claims.NewResult(nil, nil)
	}
	return &r
}

// SetClaimsResult stores r and marks the session's claims as checked, even
// when r is empty. A nil r stores the empty Result and clears the mark.
func (s *State) SetClaimsResult(r *claims.Result) {
	s.store.Set(KeyClaimsChecked, r != nil)
	if r.IsEmpty() {
		s.store.Set(KeyClaimsResult, "")
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		s.store.Set(KeyClaimsResult, "")
		return
	}
	s.store.Set(KeyClaimsResult, string(b))
}

// ClaimsChecked returns true once a claims result was stored, which tells an
// evaluation that verified nothing apart from no evaluation at all.
func (s *State) ClaimsChecked() bool {
	v, _ := s.store.Get(KeyClaimsChecked)
	checked, _ := v.(bool)
	return checked
}

// ClearToken empties the token and claims result.
func (s *State) ClearToken() {
	s.SetToken("")
	s.SetClaimsResult(nil)
}

// HasToken returns true if a token is stored.
func (s *State) HasToken() bool {
	return s.Token() != ""
}

// HasVerifiedClaims returns true if a non-empty claims result is stored.
func (s *State) HasVerifiedClaims() bool {
	return !s.ClaimsResult().IsEmpty()
}

// AllClaims returns the eligibility claim followed by the extra claims.
func (s *State) AllClaims() claims.Spec {
	return claims.ParseSpec(s.EligibilityClaim() + " " + s.ExtraClaims())
}

// ApplyClaimsRequest copies a claims request into the session. The
// request's scheme only replaces the session's when it's not empty.
func (s *State) ApplyClaimsRequest(r *config.ClaimsRequest) {
	if r == nil {
		return
	}
	s.SetScopes(r.Scopes)
	if r.Scheme != "" {
		s.SetScheme(r.Scheme)
	}
	s.SetEligibilityClaim(r.EligibilityClaim)
	s.SetExtraClaims(r.ExtraClaims)
	s.SetAuthorizeFail(r.RedirectFail)
	s.SetAuthorizeSuccess(r.RedirectSuccess)
	s.SetPostLogoutRoute(r.RedirectPostLogout)
}
