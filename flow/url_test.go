// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_redirectURI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		target string
		tls    bool
		route  string
		want   string
	}{
		{
			name:   "http-to-https",
			target: "http://rp.example.com/cdt/login",
			route:  "/cdt/authorize",
			want:   "https://rp.example.com/cdt/authorize",
		},
		{
			name:   "tls",
			target: "https://rp.example.com/cdt/login",
			tls:    true,
			route:  "/cdt/authorize",
			want:   "https://rp.example.com/cdt/authorize",
		},
		{
			name:   "lowercased",
			target: "http://RP.Example.com/cdt/login",
			route:  "/CDT/Authorize",
			want:   "https://rp.example.com/cdt/authorize",
		},
		{
			name:   "localhost",
			target: "http://localhost:8000/cdt/login",
			route:  "/cdt/authorize",
			want:   "http://localhost:8000/cdt/authorize",
		},
		{
			name:   "relative-route",
			target: "http://rp.example.com/cdt/login",
			route:  "authorize",
			want:   "https://rp.example.com/authorize",
		},
		{
			name:   "absolute-route",
			target: "http://rp.example.com/cdt/login",
			route:  "HTTP://other.example.com/Done?next=http://x",
			want:   "https://other.example.com/done?next=http://x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			} else {
				r.TLS = nil
			}
			assert.Equal(t, tt.want, redirectURI(r, tt.route))
		})
	}
}
