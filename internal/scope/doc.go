// Package scope holds the registry of resource types and the scopes that can be
// granted on them, plus the string helpers used to take resource, scope and
// permission names apart.
//
// Names follow a colon separated convention:
//
//	resource type:   namespace:type                  (okdata:dataset)
//	resource name:   namespace:type:id               (okdata:dataset:foo)
//	scope:           namespace:type:permission       (okdata:dataset:read)
//	permission name: namespace:type:id:permission    (okdata:dataset:foo:read)
package scope
