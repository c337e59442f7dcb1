// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package claims

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrorCodeThreshold is the smallest integer claim value treated as a
// provider error code instead of a boolean flag.
const ErrorCodeThreshold = 10

var integerRe = regexp.MustCompile(`^-?[0-9]+$`)

// Evaluate classifies the expected claims found in the raw userinfo payload.
// For each claim in expected:
//
//   - absent, nil or "" values are skipped (and logged as missing)
//   - values which parse as an integer are verified when equal to 1, recorded
//     as an error code when >= ErrorCodeThreshold and skipped otherwise.
//     Integers too large for an int are recorded as math.MaxInt
//   - strings equal to "true" (any case) are verified, strings equal to
//     "false" (any case) are skipped and every other string is verified with
//     its value passed through unmodified
//
// Evaluate never fails. A claim that can't be classified is logged and
// skipped without affecting the other claims.
//
// Supported options: WithLogger
func Evaluate(raw map[string]any, expected Spec, opt ...Option) *Result {
	opts := getEvalOpts(opt...)
	logger := opts.withLogger

	verified := map[string]any{}
	errs := map[string]int{}
	for _, name := range expected {
		v, ok := raw[name]
		if !ok || v == nil || v == "" {
			logger.Warn("userinfo did not contain claim", "claim", name)
			continue
		}
		if n, ok := parseInt(v); ok {
			switch {
			case n == 1:
				verified[name] = true
			case n >= ErrorCodeThreshold:
				if n > math.MaxInt {
					n = math.MaxInt
				}
				errs[name] = int(n)
			}
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case json.Number:
			s = tv.String()
		case bool:
			s = strconv.FormatBool(tv)
		default:
			logger.Warn("unable to classify claim value", "claim", name, "type", typeName(v))
			continue
		}
		switch {
		case strings.EqualFold(s, "true"):
			verified[name] = true
		case strings.EqualFold(s, "false"):
		default:
			verified[name] = s
		}
	}
	return NewResult(verified, errs)
}

// parseInt returns the integer value of v when v is an integer, or a value
// which represents an integer without loss. Integers outside the int64 range
// are clamped to it, so they keep their sign.
func parseInt(v any) (int64, bool) {
	switch tv := v.(type) {
	case int:
		return int64(tv), true
	case int8:
		return int64(tv), true
	case int16:
		return int64(tv), true
	case int32:
		return int64(tv), true
	case int64:
		return tv, true
	case uint8:
		return int64(tv), true
	case uint16:
		return int64(tv), true
	case uint32:
		return int64(tv), true
	case uint:
		if uint64(tv) > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(tv), true
	case uint64:
		if tv > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(tv), true
	case float32:
		return parseFloat(float64(tv))
	case float64:
		return parseFloat(tv)
	case json.Number:
		if n, ok := parseString(tv.String()); ok {
			return n, true
		}
		f, err := tv.Float64()
		if err != nil {
			return 0, false
		}
		return parseFloat(f)
	case string:
		return parseString(tv)
	default:
		return 0, false
	}
}

func parseFloat(f float64) (int64, bool) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
		return 0, false
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f < math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

func parseString(s string) (int64, bool) {
	if !integerRe.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// ParseInt clamps out of range values to the int64 bounds
	return n, true
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float32, float64:
		return "number"
	default:
		return "unknown"
	}
}
