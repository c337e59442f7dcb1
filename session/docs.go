// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
session provides per browser session storage for the OIDC relying party.

State is a typed view of the OIDC fields kept in a session Store. A Store is
any string keyed value store scoped to one browser session. Values is the
in-memory Store the Manager middleware loads from, and saves to, a Backend:

	backend := session.NewMemoryBackend(session.WithTTL(time.Hour))
	mgr, err := session.NewManager(backend, session.WithSecureCookie(true))
	// ...
	http.Handle("/", mgr.Handler(appHandler))

Within appHandler the session is available from the request context:

	store, ok := session.FromContext(r.Context())
	st := session.New(store)
*/
package session
