// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import "errors"

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateClientName  = errors.New("duplicate client name")
	ErrInvalidClientConfig  = errors.New("invalid client config")
	ErrInvalidClaimsRequest = errors.New("invalid claims request")
)
