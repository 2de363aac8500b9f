// Package resourceserver keeps okdata resources and their scoped permissions in
// sync with Keycloak's UMA resource server.
//
// Every resource gets one permission per scope of its type, named
// "<resource name>:<permission>". Keycloak deletes a permission as soon as its
// last user, group and client is removed, so a permission that can not be found
// is treated as one without grantees and is recreated, under a new id, when a
// grantee is added again. Permission ids must therefore never be cached across
// calls.
//
// Creating a resource is not transactional: when creating one of its
// permissions fails, the resource is left with the permissions created so far.
// Restoring from backup repairs such resources.
//
// Updates of the same permission are serialized within one ResourceServer.
// Updates from different processes may still overwrite each other, as Keycloak
// offers no way to detect concurrent modification.
package resourceserver
