package authorizer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/authorizer"
	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak/keycloaktest"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
)

func setup(t *testing.T) (*keycloaktest.Server, *authorizer.Authorizer) {
	t.Helper()

	ctx := context.Background()
	kc := keycloaktest.New(t)

	rs, err := resourceserver.New(ctx, resourceserver.Options{
		ServerURL:    kc.URL,
		Realm:        keycloaktest.Realm,
		ClientID:     keycloaktest.ClientID,
		ClientSecret: keycloaktest.ClientSecret,
	})
	require.NoError(t, err)

	owner := grantee.User("alice")

	_, err = rs.CreateResource(ctx, "okdata:dataset:foo", &owner)
	require.NoError(t, err)

	_, err = rs.CreateResource(ctx, "okdata:dataset:bar", &owner)
	require.NoError(t, err)

	_, err = rs.UpdatePermission(ctx, "okdata:dataset:bar", "okdata:dataset:read", []grantee.Grantee{grantee.User("bob")}, nil)
	require.NoError(t, err)

	kc.Grant("bob", "keycloak:resource:admin")

	a, err := authorizer.New(ctx, authorizer.Options{
		ServerURL: kc.URL,
		Realm:     keycloaktest.Realm,
		ClientID:  keycloaktest.ClientID,
	})
	require.NoError(t, err)

	return kc, a
}

func TestHasAccess(t *testing.T) {
	kc, a := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		user     string
		scope    string
		resource string
		want     bool
	}{
		{"owner has admin", "alice", "okdata:dataset:admin", "okdata:dataset:foo", true},
		{"grantee has read", "bob", "okdata:dataset:read", "okdata:dataset:bar", true},
		{"grantee lacks write", "bob", "okdata:dataset:write", "okdata:dataset:bar", false},
		{"other resource", "bob", "okdata:dataset:read", "okdata:dataset:foo", false},
		{"type level scope", "bob", "keycloak:resource:admin", "", true},
		{"type level scope missing", "alice", "keycloak:resource:admin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.HasAccess(ctx, kc.UserToken(tt.user), tt.scope, tt.resource)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasAccessProviderError(t *testing.T) {
	_, a := setup(t)

	_, err := a.HasAccess(context.Background(), "garbage", "okdata:dataset:read", "okdata:dataset:foo")

	var pe *keycloak.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)
}

func TestHasAccessUnknownResource(t *testing.T) {
	kc, a := setup(t)

	_, err := a.HasAccess(context.Background(), kc.UserToken("alice"), "okdata:dataset:read", "okdata:dataset:nope")

	var pe *keycloak.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Equal(t, "Resource with id [okdata:dataset:nope] does not exist.", pe.ErrorDescription())
}

func TestGetUserPermissions(t *testing.T) {
	kc, a := setup(t)
	ctx := context.Background()

	perms, err := a.GetUserPermissions(ctx, kc.UserToken("alice"), "okdata:dataset:read")
	require.NoError(t, err)

	byResource := map[string][]string{}
	for _, p := range perms {
		byResource[p.ResourceName] = p.Scopes
	}

	assert.Equal(t, map[string][]string{
		"okdata:dataset:foo": {"okdata:dataset:read"},
		"okdata:dataset:bar": {"okdata:dataset:read"},
	}, byResource)

	perms, err = a.GetUserPermissions(ctx, kc.UserToken("alice"), "")
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Len(t, perms[0].Scopes, 4)

	perms, err = a.GetUserPermissions(ctx, kc.UserToken("nobody"), "okdata:dataset:read")
	require.NoError(t, err)
	assert.Empty(t, perms)
}
