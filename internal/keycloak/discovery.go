package keycloak

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errMissingEndpoint = errors.New("missing required endpoint")

// Endpoints are the URLs published in a realm's UMA configuration.
type Endpoints struct {
	Issuer                       string `json:"issuer"`
	AuthorizationEndpoint        string `json:"authorization_endpoint"`
	TokenEndpoint                string `json:"token_endpoint"`
	IntrospectionEndpoint        string `json:"introspection_endpoint"`
	EndSessionEndpoint           string `json:"end_session_endpoint"`
	JWKSURI                      string `json:"jwks_uri"`
	ResourceRegistrationEndpoint string `json:"resource_registration_endpoint"`
	PermissionEndpoint           string `json:"permission_endpoint"`
	PolicyEndpoint               string `json:"policy_endpoint"`
}

// WellKnownURL returns the UMA configuration URL of a realm.
func WellKnownURL(serverURL, realm string) string {
	return RealmURL(serverURL, realm) + "/.well-known/uma2-configuration"
}

// RealmURL returns the base URL of a realm.
func RealmURL(serverURL, realm string) string {
	return strings.TrimRight(serverURL, "/") + "/auth/realms/" + realm
}

// AdminURL returns the admin API base URL of a realm.
func AdminURL(serverURL, realm string) string {
	return strings.TrimRight(serverURL, "/") + "/auth/admin/realms/" + realm
}

// Discover fetches the UMA configuration of a realm. It makes exactly one request
// and never retries; callers cache the result.
func Discover(ctx context.Context, client *http.Client, serverURL, realm string) (Endpoints, error) {
	var (
		endpoints Endpoints
		u         = WellKnownURL(serverURL, realm)
	)

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return endpoints, &DiscoveryError{URL: u, Err: err}
	}

	log.Debug().Str("url", u).Msg("discovering uma endpoints")

	resp, err := client.Do(req)
	if err != nil {
		return endpoints, &DiscoveryError{URL: u, Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		log.Info().Int("status", resp.StatusCode).Bytes("body", body).Msg("uma discovery failed")

		return endpoints, &DiscoveryError{URL: u, StatusCode: resp.StatusCode}
	}

	if err = json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return Endpoints{}, &DiscoveryError{URL: u, Err: err}
	}

	for name, value := range map[string]string{
		"token_endpoint":                 endpoints.TokenEndpoint,
		"resource_registration_endpoint": endpoints.ResourceRegistrationEndpoint,
		"policy_endpoint":                endpoints.PolicyEndpoint,
	} {
		if value == "" {
			return Endpoints{}, &DiscoveryError{URL: u, Err: errors.Wrap(errMissingEndpoint, name)}
		}
	}

	return endpoints, nil
}
