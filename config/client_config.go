// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gosimple/slug"
	"github.com/hashicorp/cap-identity/secrets"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
)

const (
	// MaxAuthorityLength is the longest authority URL a ClientConfig accepts.
	MaxAuthorityLength = 100

	// MaxClientSchemeLength is the longest scheme a ClientConfig accepts.
	MaxClientSchemeLength = 100
)

// NoClientConfig is the ClientConfig reference of a session which hasn't
// selected a client. Stores never assign it to a config.
const NoClientConfig int64 = 0

// ClientConfig is the persisted registration of a relying party with an
// identity provider.
type ClientConfig struct {
	// ID is assigned by the Store when the config is created.
	ID int64

	// ClientName is a unique slug naming the client.
	ClientName string

	// ClientID is the client's UUID at the provider. It's ignored when
	// ClientIDSecretName is set.
	ClientID string

	// ClientIDSecretName optionally names a secret holding the client id.
	ClientIDSecretName secrets.Name

	// ClientSecretName optionally names a secret holding the client secret.
	// Public clients leave it empty and rely on PKCE.
	ClientSecretName secrets.Name

	// Authority is the provider's issuer URL.
	Authority string

	// Scheme is the default scheme requested from the provider.
	Scheme string
}

// String returns the client name.
func (c *ClientConfig) String() string {
	if c == nil {
		return ""
	}
	return c.ClientName
}

// Validate returns every problem found with the config, or nil when it's
// valid.
func (c *ClientConfig) Validate() error {
	const op = "ClientConfig.Validate"
	if c == nil {
		return fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	invalid := func(format string, a ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, a...), ErrInvalidClientConfig))
	}

	if !slug.IsSlug(c.ClientName) {
		invalid("client name %q is not a slug", c.ClientName)
	}
	switch {
	case c.ClientIDSecretName != "":
		if err := c.ClientIDSecretName.Validate(); err != nil {
			invalid("client id secret name: %s", err)
		}
	case c.ClientID == "":
		invalid("missing client id")
	default:
		if _, err := uuid.ParseUUID(c.ClientID); err != nil {
			invalid("client id %q is not a uuid", c.ClientID)
		}
	}
	if c.ClientSecretName != "" {
		if err := c.ClientSecretName.Validate(); err != nil {
			invalid("client secret name: %s", err)
		}
	}
	switch {
	case c.Authority == "":
		invalid("missing authority")
	case len(c.Authority) > MaxAuthorityLength:
		invalid("authority is longer than %d characters", MaxAuthorityLength)
	default:
		u, err := url.Parse(c.Authority)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			invalid("authority %q is not an http(s) url", c.Authority)
		}
	}
	switch {
	case strings.TrimSpace(c.Scheme) == "":
		invalid("missing scheme")
	case len(c.Scheme) > MaxClientSchemeLength:
		invalid("scheme is longer than %d characters", MaxClientSchemeLength)
	}
	return result.ErrorOrNil()
}
