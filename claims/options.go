// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package claims

import "github.com/hashicorp/go-hclog"

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

// evalOptions is the set of available options for Evaluate
type evalOptions struct {
	withLogger hclog.Logger
}

func evalDefaults() evalOptions {
	return evalOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getEvalOpts(opt ...Option) evalOptions {
	opts := evalDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger used to report missing claims and
// claim values that could not be classified.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*evalOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
