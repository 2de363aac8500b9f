package keycloak_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

func TestDoJSON(t *testing.T) {
	var gotAuth, gotContentType, gotExtra string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotExtra = r.Header.Get("X-Extra")

		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"name":"foo"}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"conflict","error_description":"Resource with name [foo] already exists."}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := keycloak.NewClient(ctx, srv.Client(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}))
	client.Header = http.Header{"X-Extra": []string{"1"}}

	var out struct {
		Name string `json:"name"`
	}

	require.NoError(t, client.DoJSON(ctx, http.MethodPost, srv.URL+"/ok", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "foo", out.Name)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "1", gotExtra)

	require.NoError(t, client.DoJSON(ctx, http.MethodDelete, srv.URL+"/empty", nil, &out))

	err := client.DoJSON(ctx, http.MethodGet, srv.URL+"/conflict", nil, nil)

	var pe *keycloak.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusConflict, pe.StatusCode)
	assert.Equal(t, http.MethodGet, pe.Method)
	assert.Equal(t, "Resource with name [foo] already exists.", pe.ErrorDescription())
	assert.True(t, keycloak.IsStatus(err, http.StatusConflict))
	assert.False(t, keycloak.IsStatus(err, http.StatusNotFound))
}

func TestProviderErrorDescription(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error description", `{"error":"x","error_description":"desc"}`, "desc"},
		{"admin api message", `{"errorMessage":"Top level group named 'TEAM-a' already exists."}`, "Top level group named 'TEAM-a' already exists."},
		{"error only", `{"error":"Could not find role"}`, "Could not find role"},
		{"not json", `<html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := &keycloak.ProviderError{Body: []byte(tt.body)}
			assert.Equal(t, tt.want, pe.ErrorDescription())
		})
	}
}
