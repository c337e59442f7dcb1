// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Field limits for a ClaimsRequest.
const (
	MaxScopesLength           = 200
	MaxEligibilityClaimLength = 50
	MaxExtraClaimsLength      = 200
	MaxRequestSchemeLength    = 50
	MaxRedirectLength         = 50
)

// ClaimsRequest describes what a relying party asks the provider to verify
// and where the user goes once it has.
type ClaimsRequest struct {
	// Scopes are the space delimited scopes to request.
	Scopes string

	// EligibilityClaim names the claim whose verified presence grants access.
	EligibilityClaim string

	// ExtraClaims are space delimited claims which are evaluated but don't
	// gate access.
	ExtraClaims string

	// Scheme overrides the ClientConfig's scheme when set.
	Scheme string

	RedirectFail       string
	RedirectSuccess    string
	RedirectPostLogout string
}

type claimsRequestOptions struct {
	withExtraClaims        string
	withScheme             string
	withRedirectFail       string
	withRedirectSuccess    string
	withRedirectPostLogout string
}

func getClaimsRequestOpts(opt ...Option) claimsRequestOptions {
	opts := claimsRequestOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithExtraClaims provides optional space delimited extra claims.
func WithExtraClaims(claims string) Option {
	return func(o interface{}) {
		if o, ok := o.(*claimsRequestOptions); ok {
			o.withExtraClaims = claims
		}
	}
}

// WithScheme provides an optional scheme override.
func WithScheme(scheme string) Option {
	return func(o interface{}) {
		if o, ok := o.(*claimsRequestOptions); ok {
			o.withScheme = scheme
		}
	}
}

// WithRedirectFail overrides the route used when verification fails.
func WithRedirectFail(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*claimsRequestOptions); ok {
			o.withRedirectFail = route
		}
	}
}

// WithRedirectSuccess overrides the route used when verification succeeds.
func WithRedirectSuccess(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*claimsRequestOptions); ok {
			o.withRedirectSuccess = route
		}
	}
}

// WithRedirectPostLogout overrides the route used after logout.
func WithRedirectPostLogout(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*claimsRequestOptions); ok {
			o.withRedirectPostLogout = route
		}
	}
}

// NewClaimsRequest creates a validated ClaimsRequest. Redirects default to
// the VerifyFail, VerifySuccess and PostLogout routes.
//
// Supported options: WithExtraClaims, WithScheme, WithRedirectFail,
// WithRedirectSuccess, WithRedirectPostLogout
func NewClaimsRequest(scopes, eligibilityClaim string, routes Routes, opt ...Option) (*ClaimsRequest, error) {
	const op = "config.NewClaimsRequest"
	opts := getClaimsRequestOpts(opt...)
	r := &ClaimsRequest{
		Scopes:             scopes,
		EligibilityClaim:   eligibilityClaim,
		ExtraClaims:        opts.withExtraClaims,
		Scheme:             opts.withScheme,
		RedirectFail:       routes.VerifyFail,
		RedirectSuccess:    routes.VerifySuccess,
		RedirectPostLogout: routes.PostLogout,
	}
	if opts.withRedirectFail != "" {
		r.RedirectFail = opts.withRedirectFail
	}
	if opts.withRedirectSuccess != "" {
		r.RedirectSuccess = opts.withRedirectSuccess
	}
	if opts.withRedirectPostLogout != "" {
		r.RedirectPostLogout = opts.withRedirectPostLogout
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// AllClaims returns the eligibility claim and extra claims, trimmed and space
// delimited.
func (r *ClaimsRequest) AllClaims() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(r.EligibilityClaim) + " " + strings.TrimSpace(r.ExtraClaims))
}

// Validate returns every problem found with the request, or nil when it's
// valid.
func (r *ClaimsRequest) Validate() error {
	const op = "ClaimsRequest.Validate"
	if r == nil {
		return fmt.Errorf("%s: claims request is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	check := func(field, value string, max int, required bool) {
		switch {
		case required && strings.TrimSpace(value) == "":
			result = multierror.Append(result, fmt.Errorf("%s: missing %s: %w", op, field, ErrInvalidClaimsRequest))
		case len(value) > max:
			result = multierror.Append(result, fmt.Errorf("%s: %s is longer than %d characters: %w", op, field, max, ErrInvalidClaimsRequest))
		}
	}
	check("scopes", r.Scopes, MaxScopesLength, true)
	check("eligibility claim", r.EligibilityClaim, MaxEligibilityClaimLength, true)
	check("extra claims", r.ExtraClaims, MaxExtraClaimsLength, false)
	check("scheme", r.Scheme, MaxRequestSchemeLength, false)
	check("fail redirect", r.RedirectFail, MaxRedirectLength, true)
	check("success redirect", r.RedirectSuccess, MaxRedirectLength, true)
	check("post logout redirect", r.RedirectPostLogout, MaxRedirectLength, true)
	return result.ErrorOrNil()
}
