// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// MinTokenSize is the fewest random bytes NewToken accepts.
const MinTokenSize = 16

var ErrInvalidSize = errors.New("invalid size")

// New generates a UUID based ID with an optional prefix.
func New(optionalPrefix string) (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}

// NewToken generates a URL safe token from size random bytes. Tokens are
// suitable for session ids, OIDC state and nonce values and PKCE verifiers.
func NewToken(size int) (string, error) {
	if size < MinTokenSize {
		return "", fmt.Errorf("token size %d is less than %d: %w", size, MinTokenSize, ErrInvalidSize)
	}
	b, err := uuid.GenerateRandomBytes(size)
	if err != nil {
		return "", fmt.Errorf("unable to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
