// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// secrets resolves named secrets, such as an OIDC client id or client
// secret, that must never be stored alongside client configuration.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	ErrInvalidName    = errors.New("invalid secret name")
	ErrSecretNotFound = errors.New("secret not found")
)

var nameRe = regexp.MustCompile(`^[-a-zA-Z0-9]{1,127}$`)

// Name is the name of a secret held in a secret store. The secret value
// itself is never held by a Name.
type Name string

// Validate checks the name is between 1-127 alphanumeric ASCII characters or
// hyphen characters.
func (n Name) Validate() error {
	const op = "secrets.(Name).Validate"
	if !nameRe.MatchString(string(n)) {
		return fmt.Errorf("%s: %q must be between 1-127 alphanumeric ASCII characters and the hyphen character only: %w", op, string(n), ErrInvalidName)
	}
	return nil
}

// Reader reads secret values by name.
type Reader interface {
	ReadSecret(ctx context.Context, name Name) (string, error)
}

// EnvReader reads secret values from the process environment. Environment
// variable names can't contain a hyphen, so the variable name is the secret
// name with hyphens replaced by underscores.
type EnvReader struct {
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// ensure that EnvReader implements the Reader interface
var _ Reader = (*EnvReader)(nil)

// ReadSecret returns the value of the named secret. Literal "\n" sequences in
// the value are replaced with newlines, which allows multi-line values (PEM
// keys and certs) in environments that don't support them.
func (r *EnvReader) ReadSecret(_ context.Context, name Name) (string, error) {
	const op = "secrets.(EnvReader).ReadSecret"
	if err := name.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	lookup := os.LookupEnv
	if r != nil && r.LookupEnv != nil {
		lookup = r.LookupEnv
	}
	v, ok := lookup(strings.ReplaceAll(string(name), "-", "_"))
	if !ok {
		return "", fmt.Errorf("%s: %s: %w", op, name, ErrSecretNotFound)
	}
	return strings.ReplaceAll(v, `\n`, "\n"), nil
}
