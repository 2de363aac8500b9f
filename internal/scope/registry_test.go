package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(
		TypeScopes{Type: "okdata:foo", Permissions: []string{"p1", "p2"}},
		TypeScopes{Type: "okdata:bar", Permissions: []string{"p3"}},
	)
}

func TestAllScopes(t *testing.T) {
	assert.Equal(t, []string{"okdata:foo:p1", "okdata:foo:p2", "okdata:bar:p3"}, testRegistry().AllScopes())
}

func TestAllScopesNoDuplicates(t *testing.T) {
	r := NewRegistry(
		TypeScopes{Type: "okdata:foo", Permissions: []string{"p1", "p1", "p2"}},
		TypeScopes{Type: "okdata:foo", Permissions: []string{"p2"}},
	)

	assert.Equal(t, []string{"okdata:foo:p2"}, r.AllScopes())
	assert.Equal(t, []string{"okdata:foo"}, r.Types())
}

func TestScopesForType(t *testing.T) {
	r := testRegistry()

	scopes, err := r.ScopesForType("okdata:foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"okdata:foo:p1", "okdata:foo:p2"}, scopes)

	scopes, err = r.ScopesForType("okdata:bar")
	require.NoError(t, err)
	assert.Equal(t, []string{"okdata:bar:p3"}, scopes)

	_, err = r.ScopesForType("okdata:baz")
	require.ErrorIs(t, err, ErrUnknownResourceType)
}

func TestScopesForTypeReturnsCopy(t *testing.T) {
	r := testRegistry()

	scopes, err := r.ScopesForType("okdata:foo")
	require.NoError(t, err)

	scopes[0] = "mutated"

	again, err := r.ScopesForType("okdata:foo")
	require.NoError(t, err)
	assert.Equal(t, "okdata:foo:p1", again[0])
}

func TestDefaultDatasetScopes(t *testing.T) {
	scopes, err := Default().ScopesForType("okdata:dataset")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"okdata:dataset:read",
		"okdata:dataset:write",
		"okdata:dataset:update",
		"okdata:dataset:admin",
	}, scopes)
}

func TestDefaultTypes(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{"okdata:dataset", "maskinporten:client"}, r.Types())
	assert.Len(t, r.AllScopes(), 6)

	// team and resource admin scopes are only checked at type level
	assert.False(t, r.IsKnownScope("okdata:team:admin"))
	assert.False(t, r.IsKnownScope("keycloak:resource:admin"))

	_, err := r.ScopesForType("okdata:team")
	assert.ErrorIs(t, err, ErrUnknownResourceType)
}

func TestValidateScope(t *testing.T) {
	r := Default()

	tests := []struct {
		name     string
		resource string
		scope    string
		wantErr  error
	}{
		{"valid", "okdata:dataset:foo", "okdata:dataset:read", nil},
		{"scope of another type", "okdata:dataset:foo", "maskinporten:client:read", ErrUnknownScope},
		{"unknown permission", "okdata:dataset:foo", "okdata:dataset:delete", ErrUnknownScope},
		{"unknown resource type", "foo:bar:baz", "foo:bar:read", ErrUnknownResourceType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateScope(tt.resource, tt.scope)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsKnownScope(t *testing.T) {
	r := Default()

	assert.True(t, r.IsKnownScope("maskinporten:client:write"))
	assert.False(t, r.IsKnownScope("maskinporten:client:admin"))
	assert.False(t, r.IsKnownScope("nonsense"))
}
