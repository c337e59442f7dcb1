// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package handler

import "errors"

var ErrNilParameter = errors.New("nil parameter")
