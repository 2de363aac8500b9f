package teams

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// ProxyJWTTTL is the lifetime of the JWT presented to the admin API proxy.
const ProxyJWTTTL = 120 * time.Second

// ProxyAdminHeader carries the Keycloak admin token when requests go through the proxy.
const ProxyAdminHeader = "Keycloak-Authorization"

// ProxyJWT returns a HS256 token with iat, exp and iss claims for the admin API proxy.
func ProxyJWT(issuer string, secret []byte, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ProxyJWTTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign proxy token")
	}

	return signed, nil
}

// proxyTransport authenticates against the proxy in Authorization and forwards the
// admin token in ProxyAdminHeader. A fresh proxy JWT is signed for every request.
type proxyTransport struct {
	next   http.RoundTripper
	admin  oauth2.TokenSource
	issuer string
	secret []byte
}

func (t *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	closeBody := func() {
		if req.Body != nil {
			_ = req.Body.Close()
		}
	}

	token, err := t.admin.Token()
	if err != nil {
		closeBody()

		return nil, errors.Wrap(err, "failed to get admin token")
	}

	proxyToken, err := ProxyJWT(t.issuer, t.secret, time.Now())
	if err != nil {
		closeBody()

		return nil, err
	}

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+proxyToken)
	r.Header.Set(ProxyAdminHeader, "Bearer "+token.AccessToken)

	return t.next.RoundTrip(r) //nolint:wrapcheck
}
