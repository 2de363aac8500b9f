// Package teams manages teams through the Keycloak admin API.
//
// A team is a top-level Keycloak group whose name starts with grantee.TeamGroupPrefix.
// The package exposes teams by their bare name and hides the group naming and the
// group attribute names. Requests may be routed through a proxy which expects a
// short lived HS256 JWT next to the Keycloak admin token.
package teams
