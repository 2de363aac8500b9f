// Package keycloak contains the plumbing shared by every Keycloak client in this
// module: UMA discovery, service account tokens, an instrumented JSON client,
// the provider error type and an offset pager for Keycloak's list endpoints.
package keycloak
