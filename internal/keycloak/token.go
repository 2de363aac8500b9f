package keycloak

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RefreshLeeway is how long before its exp claim a token is considered stale.
const RefreshLeeway = 10 * time.Second

// TokenURL returns the OpenID Connect token endpoint of a realm.
func TokenURL(serverURL, realm string) string {
	return RealmURL(serverURL, realm) + "/protocol/openid-connect/token"
}

// TokenExpiry decodes the exp claim of an access token without verifying its signature.
// Only use it on tokens received directly from Keycloak's token endpoint.
func TokenExpiry(accessToken string) (time.Time, error) {
	var claims jwt.RegisteredClaims

	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, errors.Wrap(err, "failed to decode access token")
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrMissingExpiry
	}

	return claims.ExpiresAt.Time, nil
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) {
	return f()
}

// expirySource sets Expiry from the token's own exp claim, falling back to expires_in.
type expirySource struct {
	src oauth2.TokenSource
}

func (s expirySource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if exp, err := TokenExpiry(tok.AccessToken); err == nil {
		tok.Expiry = exp
	}

	return tok, nil
}

// ReuseTokenSource caches tokens from src until they are within RefreshLeeway of expiry.
// Concurrent callers may both refresh; either token is valid.
func ReuseTokenSource(src oauth2.TokenSource) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, expirySource{src: src}, RefreshLeeway)
}

// ClientCredentialsTokenSource returns the service account token source of a confidential client.
func ClientCredentialsTokenSource(ctx context.Context, tokenURL, clientID, clientSecret string) oauth2.TokenSource {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return ReuseTokenSource(tokenSourceFunc(func() (*oauth2.Token, error) {
		return cfg.Token(ctx)
	}))
}

// PasswordTokenSource returns a token source logging in as a user with the password grant.
func PasswordTokenSource(ctx context.Context, tokenURL, clientID, username, password string) oauth2.TokenSource {
	cfg := oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return ReuseTokenSource(tokenSourceFunc(func() (*oauth2.Token, error) {
		return cfg.PasswordCredentialsToken(ctx, username, password)
	}))
}
