// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
)

// Response is an http response produced by a Client or a flow, not yet
// written.
type Response struct {
	StatusCode int
	Location   string
	Body       []byte
}

// NewRedirect returns a 302 Found response to location.
func NewRedirect(location string) *Response {
	return &Response{StatusCode: http.StatusFound, Location: location}
}

// IsRedirect returns true for 3xx responses with a location.
func (r *Response) IsRedirect() bool {
	return r != nil && r.StatusCode >= 300 && r.StatusCode < 400 && r.Location != ""
}

// Write writes the response to w.
func (r *Response) Write(w http.ResponseWriter) {
	if r == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if r.Location != "" {
		w.Header().Set("Location", r.Location)
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if len(r.Body) > 0 && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}
