// Package authorizer asks Keycloak what a bearer token may do, using UMA ticket
// token exchanges against the resource server client.
package authorizer

import (
	"context"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// UMATicketGrant is the grant type used for authorization requests.
const UMATicketGrant = "urn:ietf:params:oauth:grant-type:uma-ticket"

// Options configures an Authorizer.
type Options struct {
	ServerURL string
	Realm     string
	// ClientID is the resource server client, used as audience.
	ClientID   string
	HTTPClient *http.Client
}

// Authorizer evaluates permissions of bearer tokens.
type Authorizer struct {
	tokenEndpoint string
	audience      string
	client        *keycloak.Client
}

// UserPermission is one entry of the authorization claim of an RPT.
type UserPermission struct {
	ResourceID   string   `json:"rsid,omitempty"`
	ResourceName string   `json:"rsname"`
	Scopes       []string `json:"scopes"`
}

type rptClaims struct {
	jwt.RegisteredClaims

	Authorization struct {
		Permissions []UserPermission `json:"permissions"`
	} `json:"authorization"`
}

// New discovers the realm's token endpoint and returns an Authorizer.
func New(ctx context.Context, opts Options) (*Authorizer, error) {
	httpClient := keycloak.NewHTTPClient(ctx, opts.HTTPClient, nil)

	endpoints, err := keycloak.Discover(ctx, httpClient, opts.ServerURL, opts.Realm)
	if err != nil {
		return nil, err
	}

	return &Authorizer{
		tokenEndpoint: endpoints.TokenEndpoint,
		audience:      opts.ClientID,
		client:        &keycloak.Client{HTTP: httpClient},
	}, nil
}

// HasAccess reports whether bearer holds scope on resourceName. With an empty
// resourceName the scope is checked without a resource, e.g. for type-level
// scopes like "okdata:dataset:create".
func (a *Authorizer) HasAccess(ctx context.Context, bearer, scope, resourceName string) (bool, error) {
	form := url.Values{
		"grant_type":    {UMATicketGrant},
		"audience":      {a.audience},
		"response_mode": {"decision"},
		"permission":    {resourceName + "#" + scope},
	}

	var decision struct {
		Result bool `json:"result"`
	}

	err := a.client.PostForm(ctx, a.tokenEndpoint, bearer, form, &decision)

	switch {
	case keycloak.IsStatus(err, http.StatusForbidden):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "authorization request failed")
	}

	return decision.Result, nil
}

// GetUserPermissions returns the resources and scopes bearer holds, limited to
// scope when it is not empty.
//
// The requesting party token returned by Keycloak is decoded without verifying
// its signature: it was just received from the token endpoint over TLS.
// Never use this for tokens received from anyone else.
func (a *Authorizer) GetUserPermissions(ctx context.Context, bearer, scope string) ([]UserPermission, error) {
	form := url.Values{
		"grant_type": {UMATicketGrant},
		"audience":   {a.audience},
	}

	if scope != "" {
		form.Set("permission", "#"+scope)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}

	err := a.client.PostForm(ctx, a.tokenEndpoint, bearer, form, &token)

	switch {
	case keycloak.IsStatus(err, http.StatusForbidden):
		return []UserPermission{}, nil
	case err != nil:
		return nil, errors.Wrap(err, "authorization request failed")
	}

	var claims rptClaims

	if _, _, err = jwt.NewParser().ParseUnverified(token.AccessToken, &claims); err != nil {
		return nil, errors.Wrap(err, "failed to decode requesting party token")
	}

	if claims.Authorization.Permissions == nil {
		return []UserPermission{}, nil
	}

	return claims.Authorization.Permissions, nil
}
