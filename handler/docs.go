// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package handler serves a flow.Controller over http with a chi router.

The login, authorize and logout routes run the controller's transitions. The
cancel, post_logout, verify_fail and verify_success routes render a page
with the handler's PageFunc. When WithStart is used, {prefix}/start/{client}
begins claims verification for a named client config.

Requests must carry a session, see session.Manager.

Example:

	r := chi.NewRouter()
	r.Use(mgr.Handler)
	h, err := handler.New(ctrl, handler.WithLogger(logger))
	if err != nil {
		// handle error
	}
	h.Register(r)
*/
package handler
