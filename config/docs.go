// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
config is a package for the persisted configuration an OIDC relying party
needs: which identity provider client to use (ClientConfig), what to ask it
for (ClaimsRequest) and where the module's routes live (Routes).

ClientConfigs are read through a Store. MemoryStore is suitable for tests and
single process deployments, PostgresStore persists configs in PostgreSQL.
*/
package config
