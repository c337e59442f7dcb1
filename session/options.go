// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// stateOptions is the set of available options for New
type stateOptions struct {
	withAuthorizeFail    string
	withAuthorizeSuccess string
	withScopes           string
	withScheme           string
	withReset            bool
}

func getStateOpts(opt ...Option) stateOptions {
	opts := stateOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAuthorizeFail provides an optional route to redirect to when
// authorization fails. An empty route is ignored.
func WithAuthorizeFail(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stateOptions); ok {
			o.withAuthorizeFail = route
		}
	}
}

// WithAuthorizeSuccess provides an optional route to redirect to when
// authorization succeeds. An empty route is ignored.
func WithAuthorizeSuccess(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stateOptions); ok {
			o.withAuthorizeSuccess = route
		}
	}
}

// WithScopes provides optional space delimited scopes requested during login.
// Empty scopes are ignored.
func WithScopes(scopes string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stateOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithScheme provides an optional override of the client's scheme. An empty
// scheme is ignored.
func WithScheme(scheme string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stateOptions); ok {
			o.withScheme = scheme
		}
	}
}

// WithReset clears the session's OIDC request and token fields before any
// other option is applied.
func WithReset(reset bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*stateOptions); ok {
			o.withReset = reset
		}
	}
}

// DefaultTTL is how long an idle session is kept by a Backend.
const DefaultTTL = 12 * time.Hour

// DefaultCookieName is the name of the Manager's session cookie.
const DefaultCookieName = "cap_identity_session"

// DefaultKeyPrefix prefixes every key a RedisBackend writes.
const DefaultKeyPrefix = "cap-identity:session:"

type backendOptions struct {
	withTTL       time.Duration
	withKeyPrefix string
}

func backendDefaults() backendOptions {
	return backendOptions{
		withTTL:       DefaultTTL,
		withKeyPrefix: DefaultKeyPrefix,
	}
}

func getBackendOpts(opt ...Option) backendOptions {
	opts := backendDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTTL provides an optional idle timeout for sessions. Non-positive
// durations are ignored.
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*backendOptions); ok && d > 0 {
			o.withTTL = d
		}
	}
}

// WithKeyPrefix provides an optional prefix for the keys a RedisBackend
// writes.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*backendOptions); ok && prefix != "" {
			o.withKeyPrefix = prefix
		}
	}
}

type managerOptions struct {
	withCookieName   string
	withCookiePath   string
	withSecureCookie bool
	withLogger       hclog.Logger
}

func managerDefaults() managerOptions {
	return managerOptions{
		withCookieName: DefaultCookieName,
		withCookiePath: "/",
		withLogger:     hclog.NewNullLogger(),
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithCookieName provides an optional name for the session cookie.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithCookiePath provides an optional path for the session cookie.
func WithCookiePath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && path != "" {
			o.withCookiePath = path
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withSecureCookie = secure
		}
	}
}

// WithLogger provides an optional logger for the Manager.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
