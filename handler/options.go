// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"github.com/hashicorp/cap-identity/config"
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

// handlerOptions is the set of available options for New
type handlerOptions struct {
	withPageFunc      PageFunc
	withLogger        hclog.Logger
	withClientConfigs config.Repository
	withClaimsRequest *config.ClaimsRequest
}

func handlerDefaults() handlerOptions {
	return handlerOptions{
		withPageFunc: DefaultPage,
		withLogger:   hclog.NewNullLogger(),
	}
}

func getHandlerOpts(opt ...Option) handlerOptions {
	opts := handlerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPageFunc provides an optional PageFunc which renders the template only
// routes and errors.
func WithPageFunc(fn PageFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok && fn != nil {
			o.withPageFunc = fn
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithStart enables the start route, which looks up client configs by name
// in repo and requests claims verification with req.
func WithStart(repo config.Repository, req *config.ClaimsRequest) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok {
			o.withClientConfigs = repo
			o.withClaimsRequest = req
		}
	}
}
