// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/secrets"
	"github.com/hashicorp/go-hclog"
)

// Registry is a Factory which creates Providers. It keeps one Provider per
// client, authority, scopes and scheme so discovery happens once per
// combination. It's safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*Provider

	secrets      secrets.Reader
	providerCA   string
	signingAlgs  []Alg
	providerOpts []Option
	logger       hclog.Logger
}

var _ Factory = (*Registry)(nil)

// NewRegistry creates an empty Registry. Options for NewProvider are passed
// to every Provider the Registry creates.
//
// Supported options: WithSecretReader, WithProviderCA, WithSigningAlgs,
// WithLogger and the NewProvider options
func NewRegistry(opt ...Option) *Registry {
	opts := getRegistryOpts(opt...)
	return &Registry{
		providers:    map[string]*Provider{},
		secrets:      opts.withSecretReader,
		providerCA:   opts.withProviderCA,
		signingAlgs:  opts.withSigningAlgs,
		providerOpts: opts.withProviderOpts,
		logger:       opts.withLogger.Named("registry"),
	}
}

func registryKey(c *config.ClientConfig, scopes, scheme string) string {
	return strings.Join([]string{c.ClientName, c.Authority, strings.Join(strings.Fields(scopes), " "), scheme}, "|")
}

// Create returns the Provider for c. A non-empty scheme overrides the
// config's. When the config's client id or secret doesn't exist, or the
// resolved config is invalid, Create returns a nil Client and no error.
// Secret backend and discovery errors are returned.
func (r *Registry) Create(ctx context.Context, c *config.ClientConfig, scopes, scheme string) (Client, error) {
	const op = "Registry.Create"
	if c == nil {
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if scheme == "" {
		scheme = c.Scheme
	}
	key := registryKey(c, scopes, scheme)

	if p, ok := r.cached(key); ok {
		return p, nil
	}

	logger := r.logger.With("client", c.ClientName)
	clientID := c.ClientID
	if c.ClientIDSecretName != "" {
		v, found, err := r.readSecret(ctx, c.ClientIDSecretName)
		switch {
		case err != nil:
			return nil, fmt.Errorf("%s: unable to read client id: %w", op, err)
		case !found:
			logger.Warn("client id secret not found", "secret", string(c.ClientIDSecretName))
			return nil, nil
		}
		clientID = v
	}
	var clientSecret ClientSecret
	if c.ClientSecretName != "" {
		v, found, err := r.readSecret(ctx, c.ClientSecretName)
		switch {
		case err != nil:
			return nil, fmt.Errorf("%s: unable to read client secret: %w", op, err)
		case !found:
			logger.Warn("client secret not found", "secret", string(c.ClientSecretName))
			return nil, nil
		}
		clientSecret = ClientSecret(v)
	}
	pc := &ProviderConfig{
		ClientName:           c.ClientName,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		Issuer:               c.Authority,
		Scopes:               strings.Fields(scopes),
		Scheme:               scheme,
		SupportedSigningAlgs: r.signingAlgs,
		ProviderCA:           r.providerCA,
	}
	if err := pc.Validate(); err != nil {
		logger.Warn("client config can't be registered", "error", err)
		return nil, nil
	}
	// discover without holding the lock
	p, err := NewProvider(ctx, pc, r.providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, c.ClientName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.providers[key]; ok {
		// a concurrent Create registered the key first
		p.Done()
		return existing, nil
	}
	r.providers[key] = p
	logger.Debug("registered provider", "scopes", scopes, "scheme", scheme)
	return p, nil
}

func (r *Registry) cached(key string) (*Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[key]
	return p, ok
}

// readSecret returns false when the secret doesn't exist or its name is
// invalid.
func (r *Registry) readSecret(ctx context.Context, name secrets.Name) (string, bool, error) {
	v, err := r.secrets.ReadSecret(ctx, name)
	switch {
	case errors.Is(err, secrets.ErrSecretNotFound), errors.Is(err, secrets.ErrInvalidName):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return v, true, nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Close releases every registered provider's resources.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.providers {
		p.Done()
		delete(r.providers, k)
	}
}
