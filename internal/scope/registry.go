package scope

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// AdminPermission is the permission suffix guarded against losing its last grantee.
const AdminPermission = "admin"

// TypeScopes lists the permissions of a single resource type.
type TypeScopes struct {
	Type        string
	Permissions []string
}

// Registry maps resource types to their ordered list of scopes.
// A Registry is never mutated after construction.
type Registry struct {
	types  []string
	scopes map[string][]string
}

// NewRegistry builds a registry from the given type definitions, keeping their order.
func NewRegistry(defs ...TypeScopes) *Registry {
	r := &Registry{scopes: make(map[string][]string, len(defs))}

	for _, def := range defs {
		if _, exists := r.scopes[def.Type]; !exists {
			r.types = append(r.types, def.Type)
		}

		scopes := make([]string, 0, len(def.Permissions))
		for _, p := range def.Permissions {
			s := def.Type + ":" + p
			if !slices.Contains(scopes, s) {
				scopes = append(scopes, s)
			}
		}

		r.scopes[def.Type] = scopes
	}

	return r
}

// Default returns the built-in registry.
func Default() *Registry {
	return NewRegistry(
		TypeScopes{Type: "okdata:dataset", Permissions: []string{"read", "write", "update", "admin"}},
		TypeScopes{Type: "maskinporten:client", Permissions: []string{"read", "write"}},
	)
}

// Types returns the registered resource types in registration order.
func (r *Registry) Types() []string {
	return slices.Clone(r.types)
}

// ScopesForType returns every scope defined for resourceType.
func (r *Registry) ScopesForType(resourceType string) ([]string, error) {
	scopes, ok := r.scopes[resourceType]
	if !ok {
		return nil, errors.Wrap(
			ErrUnknownResourceType,
			fmt.Sprintf("%s, must be one of: %s", resourceType, strings.Join(r.types, ", ")),
		)
	}

	return slices.Clone(scopes), nil
}

// AllScopes returns every registered scope.
func (r *Registry) AllScopes() []string {
	var out []string

	for _, t := range r.types {
		for _, s := range r.scopes[t] {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}

	return out
}

// IsKnownScope reports whether scope is registered for any type.
func (r *Registry) IsKnownScope(scope string) bool {
	return slices.Contains(r.scopes[ScopeType(scope)], scope)
}

// ValidateResourceName fails with ErrUnknownResourceType if the type of name is not registered.
func (r *Registry) ValidateResourceName(name string) error {
	_, err := r.ScopesForType(ResourceType(name))
	return err
}

// ValidateScope checks that scope is registered for the type of resourceName.
func (r *Registry) ValidateScope(resourceName, scope string) error {
	scopes, err := r.ScopesForType(ResourceType(resourceName))
	if err != nil {
		return err
	}

	if !slices.Contains(scopes, scope) {
		return errors.Wrap(
			ErrUnknownScope,
			fmt.Sprintf("%s, must be one of: %s", scope, strings.Join(scopes, ", ")),
		)
	}

	return nil
}
