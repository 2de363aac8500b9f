package scope

import (
	"fmt"
	"strings"
)

// PermissionSuffix returns the permission part of scope,
// i.e. "permission" from "namespace:type:permission".
func PermissionSuffix(scope string) string {
	return scope[strings.LastIndex(scope, ":")+1:]
}

// ScopeType returns the resource type a scope belongs to,
// i.e. "namespace:type" from "namespace:type:permission".
func ScopeType(scope string) string {
	i := strings.LastIndex(scope, ":")
	if i < 0 {
		return ""
	}

	return scope[:i]
}

// ResourceType returns the namespaced type of a resource name,
// i.e. "namespace:type" from "namespace:type:id".
func ResourceType(resourceName string) string {
	return firstSegments(resourceName, 2) //nolint:mnd
}

// ResourceID returns the id part of a resource name, i.e. "id" from "namespace:type:id".
func ResourceID(resourceName string) string {
	return resourceName[strings.LastIndex(resourceName, ":")+1:]
}

// ResourceNameFromPermissionName returns "namespace:type:id" from "namespace:type:id:permission".
func ResourceNameFromPermissionName(permissionName string) string {
	return firstSegments(permissionName, 3) //nolint:mnd
}

// PermissionName returns the name of the permission granting scope on resourceName.
func PermissionName(resourceName, scope string) string {
	return resourceName + ":" + PermissionSuffix(scope)
}

// PermissionDescription returns the description stored on a new permission.
func PermissionDescription(resourceName, scope string) string {
	return fmt.Sprintf("Allows for %s operations on resource: %s", PermissionSuffix(scope), resourceName)
}

// IsAdminScope reports whether scope grants administration of a resource.
func IsAdminScope(scope string) bool {
	return PermissionSuffix(scope) == AdminPermission
}

func firstSegments(s string, n int) string {
	parts := strings.Split(s, ":")
	if len(parts) > n {
		parts = parts[:n]
	}

	return strings.Join(parts, ":")
}
