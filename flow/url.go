// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"net/http"
	"strings"
)

// redirectURI returns the canonical absolute url of route for the inbound
// request r. The url is lowercased and http urls become https, except for
// http://localhost which is kept for local development.
func redirectURI(r *http.Request, route string) string {
	u := route
	lower := strings.ToLower(route)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
		u = scheme + "://" + r.Host + route
	}
	u = strings.ToLower(u)
	if strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "http://localhost") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
