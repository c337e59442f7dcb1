// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import "strings"

// DefaultRoutePrefix is the path prefix used by DefaultRoutes.
const DefaultRoutePrefix = "/cdt"

// Route fragments served by the module, relative to a Routes.Prefix.
const (
	RouteAuthorize     = "authorize"
	RouteCancel        = "cancel"
	RouteLogin         = "login"
	RouteLogout        = "logout"
	RoutePostLogout    = "post_logout"
	RouteVerifyFail    = "verify_fail"
	RouteVerifySuccess = "verify_success"
)

// Routes are the absolute paths of the module's endpoints. Routes is a value
// type: build one with NewRoutes and pass it to whatever needs it.
type Routes struct {
	Prefix        string
	Authorize     string
	Cancel        string
	Login         string
	Logout        string
	PostLogout    string
	VerifyFail    string
	VerifySuccess string
}

// NewRoutes returns the module's routes mounted under prefix. An empty prefix
// mounts them at the root.
func NewRoutes(prefix string) Routes {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	route := func(fragment string) string {
		return prefix + "/" + fragment
	}
	return Routes{
		Prefix:        prefix,
		Authorize:     route(RouteAuthorize),
		Cancel:        route(RouteCancel),
		Login:         route(RouteLogin),
		Logout:        route(RouteLogout),
		PostLogout:    route(RoutePostLogout),
		VerifyFail:    route(RouteVerifyFail),
		VerifySuccess: route(RouteVerifySuccess),
	}
}

// DefaultRoutes returns the routes mounted under DefaultRoutePrefix.
func DefaultRoutes() Routes {
	return NewRoutes(DefaultRoutePrefix)
}
