// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
claims is a package for classifying the loosely typed claims an identity
provider returns from its userinfo endpoint.

Providers encode boolean claims inconsistently: numeric flags ("1" or "0"),
string booleans ("true" or "false") and numeric error sentinels (values of 10
or greater) which signal a provider side failure for that one claim. Evaluate
applies the same rules to every expected claim and returns an immutable
Result that separates verified claims from error codes.

Primary types provided by the package:

* Spec: an ordered, deduplicated set of claim names the caller expects.

* Result: the verified claims (true or a pass-through string value) and the
claim error codes produced by one evaluation.
*/
package claims
