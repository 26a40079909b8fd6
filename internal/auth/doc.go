// Package auth provides the credential authentication and authorization core
// for the webSecurity service.
//
// This package implements:
//   - Credential stores resolving an identifier to a Principal
//   - Password verification against salted one-way hashes (bcrypt)
//   - Authentication results with typed failure reasons
//   - Authority and role requirements evaluated by the Authorizer
//
// Nothing in this package reads ambient request state. Callers pass the
// principal explicitly to every authorization check.
package auth
