// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package flow orchestrates the claims verification flow of a relying party:
login, the authorization callback and logout.

A Controller reads the session installed by session.Manager, resolves the
session's client config into an oidc.Client through an oidc.Factory and drives
the three transitions:

	Login      redirect to the provider's authorization endpoint
	Authorize  exchange the code, evaluate the userinfo claims and redirect to
	           the session's success or fail route
	Logout     clear the token and claims, then redirect to the provider's
	           end session endpoint

Example:

	ctrl, err := flow.New(registry, clientConfigs, config.DefaultRoutes(), flow.WithLogger(logger))
	if err != nil {
		// handle error
	}
	resp, err := ctrl.Login(ctx, w, r)
	if err != nil {
		// the session has no client config, or the client isn't registered
	}
	resp.Write(w)
*/
package flow
