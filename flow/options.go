// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"github.com/hashicorp/cap-identity/metrics"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
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

// controllerOptions is the set of available options for New
type controllerOptions struct {
	withErrorRoute     string
	withLogger         hclog.Logger
	withMetrics        *metrics.Metrics
	withTracerProvider trace.TracerProvider
}

func controllerDefaults() controllerOptions {
	return controllerOptions{
		withLogger:         hclog.NewNullLogger(),
		withTracerProvider: otel.GetTracerProvider(),
	}
}

func getControllerOpts(opt ...Option) controllerOptions {
	opts := controllerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithErrorRoute provides an optional route which the user is redirected to
// when the session's client can't be resolved, instead of an error.
func WithErrorRoute(route string) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withErrorRoute = route
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides optional metrics to record transitions in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok {
			o.withMetrics = m
		}
	}
}

// WithTracerProvider provides an optional trace.TracerProvider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o interface{}) {
		if o, ok := o.(*controllerOptions); ok && tp != nil {
			o.withTracerProvider = tp
		}
	}
}
