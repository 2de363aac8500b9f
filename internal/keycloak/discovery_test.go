package keycloak_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak/keycloaktest"
)

func TestDiscover(t *testing.T) {
	kc := keycloaktest.New(t)

	endpoints, err := keycloak.Discover(context.Background(), nil, kc.URL, keycloaktest.Realm)
	require.NoError(t, err)

	base := kc.URL + "/auth/realms/" + keycloaktest.Realm
	assert.Equal(t, base+"/protocol/openid-connect/token", endpoints.TokenEndpoint)
	assert.Equal(t, base+"/authz/protection/resource_set", endpoints.ResourceRegistrationEndpoint)
	assert.Equal(t, base+"/authz/protection/uma-policy", endpoints.PolicyEndpoint)
	assert.Equal(t, []string{"GET /auth/realms/test/.well-known/uma2-configuration"}, kc.Requests())
}

func TestDiscoverErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "missing policy endpoint",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"token_endpoint":"x","resource_registration_endpoint":"y"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := keycloak.Discover(context.Background(), srv.Client(), srv.URL, "realm")

			var discoveryErr *keycloak.DiscoveryError
			require.ErrorAs(t, err, &discoveryErr)
			assert.Equal(t, tt.wantStatus, discoveryErr.StatusCode)
			assert.Equal(t, srv.URL+"/auth/realms/realm/.well-known/uma2-configuration", discoveryErr.URL)
		})
	}
}
