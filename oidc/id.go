// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/cap-identity/sdk/id"
)

// idSize is the number of random bytes in ids made by NewID.
const idSize = 24

// NewID generates an ID with an optional prefix. The ID generated is suitable
// for a state id or nonce.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	tok, err := id.NewToken(idSize)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %s: %w", op, err, ErrIDGeneratorFailed)
	}
	if optionalPrefix != "" {
		return optionalPrefix + "_" + tok, nil
	}
	return tok, nil
}
