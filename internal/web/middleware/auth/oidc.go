package auth

import (
	"context"
	"crypto"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// OIDCVerifier verifies access tokens issued by a Keycloak realm.
//
// Access tokens are checked for signature, issuer and expiry. Their audience
// is not checked: Keycloak issues user tokens for many clients.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the realm's signing keys.
func NewOIDCVerifier(ctx context.Context, serverURL, realm string) (*OIDCVerifier, error) {
	issuer := keycloak.RealmURL(serverURL, realm)

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to discover openid provider %s", issuer)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

// NewStaticOIDCVerifier verifies tokens of issuer signed by one of keys, without discovery.
func NewStaticOIDCVerifier(issuer string, keys ...crypto.PublicKey) *OIDCVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}

	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{SkipClientIDCheck: true}),
	}
}

// Verify implements Verifier. The principal is the preferred_username claim,
// falling back to the subject.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify access token")
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
	}

	if err = token.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse access token claims")
	}

	p := &Principal{Username: claims.PreferredUsername, Subject: token.Subject}
	if p.Username == "" {
		p.Username = token.Subject
	}

	return p, nil
}
