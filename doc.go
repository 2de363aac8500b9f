// Package main provides the entry point of okdata-permission-api.
// It serves a REST API on the Fiber framework that creates Keycloak resources
// with scoped permissions, lets resource admins grant and revoke those
// permissions for users, teams and clients, manages teams as Keycloak groups
// and issues webhook tokens for datasets. Subcommands back up permissions
// to S3 and repair them from those backups.
package main
