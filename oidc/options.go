// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/cap-identity/secrets"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
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

// DefaultStateExpiry is how long a user has to complete an authorization.
const DefaultStateExpiry = 10 * time.Minute

// DefaultStateExpirySkew defines a default time skew when checking a state's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// DefaultPrompt is the prompt parameter sent with every authorization request.
const DefaultPrompt = "login"

// providerOptions is the set of available options for NewProvider
type providerOptions struct {
	withStateExpiry time.Duration
	withExpirySkew  time.Duration
	withUILocales   []language.Tag
	withPrompt      string
	withLogger      hclog.Logger
}

func providerDefaults() providerOptions {
	return providerOptions{
		withStateExpiry: DefaultStateExpiry,
		withExpirySkew:  DefaultStateExpirySkew,
		withPrompt:      DefaultPrompt,
		withLogger:      hclog.NewNullLogger(),
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// registryOptions is the set of available options for NewRegistry
type registryOptions struct {
	withSecretReader secrets.Reader
	withProviderCA   string
	withSigningAlgs  []Alg
	withLogger       hclog.Logger
	withProviderOpts []Option
}

func registryDefaults() registryOptions {
	return registryOptions{
		withSecretReader: &secrets.EnvReader{},
		withLogger:       hclog.NewNullLogger(),
	}
}

func getRegistryOpts(opt ...Option) registryOptions {
	opts := registryDefaults()
	ApplyOpts(&opts, opt...)
	// provider options given to the registry are handed to every Provider it
	// creates
	opts.withProviderOpts = append(opts.withProviderOpts, opt...)
	return opts
}

// WithStateExpiry provides an optional duration a user has to complete an
// authorization. Non-positive durations are ignored.
func WithStateExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && d > 0 {
			o.withStateExpiry = d
		}
	}
}

// WithExpirySkew provides an optional expiry skew duration used when checking
// a state's expiration.
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withExpirySkew = d
		}
	}
}

// WithUILocales provides optional end-user preferred languages for the
// provider's user interface, sent as the ui_locales parameter.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithPrompt overrides the prompt parameter sent with authorization requests.
// An empty prompt omits the parameter.
func WithPrompt(prompt string) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withPrompt = prompt
		}
	}
}

// WithLogger provides an optional logger for a Provider or Registry.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *providerOptions:
			v.withLogger = l
		case *registryOptions:
			v.withLogger = l
		}
	}
}

// WithSecretReader provides an optional secrets.Reader used by a Registry to
// resolve client ids and secrets. The default reads the environment.
func WithSecretReader(r secrets.Reader) Option {
	return func(o interface{}) {
		if o, ok := o.(*registryOptions); ok && r != nil {
			o.withSecretReader = r
		}
	}
}

// WithProviderCA provides an optional CA certificate PEM used when a
// Registry's providers make requests to the identity provider.
func WithProviderCA(caPEM string) Option {
	return func(o interface{}) {
		if o, ok := o.(*registryOptions); ok {
			o.withProviderCA = caPEM
		}
	}
}

// WithSigningAlgs provides the optional id_token signing algorithms a
// Registry's providers accept.
func WithSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*registryOptions); ok {
			o.withSigningAlgs = algs
		}
	}
}
