// Package keycloaktest provides an in-memory Keycloak for tests. It implements the
// parts of the UMA protection API, the token endpoint and the admin API used by
// this module, including Keycloak's habit of deleting a permission once its last
// grantee is removed.
package keycloaktest

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// Defaults used by New.
const (
	Realm        = "test"
	ClientID     = "okdata-resource-server"
	ClientSecret = "secret"
	AdminUser    = "teams-admin"
	AdminPass    = "admin-password"
)

type permission struct {
	keycloak.Permission
	resourceID string
}

// Server is a fake Keycloak server.
type Server struct {
	*httptest.Server

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// MaxPageSize caps the number of items returned per page when not zero.
	MaxPageSize int
	// DiscoveryStatus makes the discovery endpoint fail with this status when not zero.
	DiscoveryStatus int
	// ProxySecret, when set, is the HS256 key of the JWT required in the Authorization
	// header of admin requests; the admin token is then read from Keycloak-Authorization.
	ProxySecret []byte

	t             testing.TB
	mu            sync.Mutex
	seq           int
	key           []byte
	resources     []*keycloak.Resource
	permissions   []*permission
	groups        []*keycloak.Group
	users         []*keycloak.User
	members       map[string][]string
	roles         map[string][]string
	grants        map[string][]string
	tokenRequests map[string]int
	requests      []string
}

// New starts a fake Keycloak that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t:             t,
		TokenTTL:      5 * time.Minute,
		key:           []byte("keycloaktest-signing-key"),
		members:       map[string][]string{},
		roles:         map[string][]string{},
		grants:        map[string][]string{},
		tokenRequests: map[string]int{},
	}

	mux := http.NewServeMux()

	realm := "/auth/realms/{realm}"
	mux.HandleFunc("GET "+realm+"/.well-known/uma2-configuration", s.wellKnown)
	mux.HandleFunc("POST "+realm+"/protocol/openid-connect/token", s.token)

	protection := realm + "/authz/protection"
	mux.HandleFunc("POST "+protection+"/resource_set", s.protected(s.createResource))
	mux.HandleFunc("GET "+protection+"/resource_set", s.protected(s.findResources))
	mux.HandleFunc("GET "+protection+"/resource_set/{id}", s.protected(s.getResource))
	mux.HandleFunc("DELETE "+protection+"/resource_set/{id}", s.protected(s.deleteResource))
	mux.HandleFunc("POST "+protection+"/uma-policy/{resourceID}", s.protected(s.createPermission))
	mux.HandleFunc("GET "+protection+"/uma-policy", s.protected(s.listPermissions))
	mux.HandleFunc("GET "+protection+"/uma-policy/{id}", s.protected(s.getPermission))
	mux.HandleFunc("PUT "+protection+"/uma-policy/{id}", s.protected(s.updatePermission))
	mux.HandleFunc("DELETE "+protection+"/uma-policy/{id}", s.protected(s.deletePermission))

	s.registerAdmin(mux, "/auth/admin/realms/{realm}")

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)

	return s
}

// TokenURL returns the token endpoint.
func (s *Server) TokenURL() string {
	return keycloak.TokenURL(s.URL, Realm)
}

// AdminURL returns the admin API base URL.
func (s *Server) AdminURL() string {
	return keycloak.AdminURL(s.URL, Realm)
}

// UserToken returns an access token for username.
func (s *Server) UserToken(username string) string {
	return s.issue(username, "", s.TokenTTL)
}

// ExpiringToken returns an access token for username that expires after ttl.
func (s *Server) ExpiringToken(username string, ttl time.Duration) string {
	return s.issue(username, "", ttl)
}

// Grant gives username a scope not tied to any resource, e.g. "okdata:dataset:create".
func (s *Server) Grant(username string, scopes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[username] = append(s.grants[username], scopes...)
}

// TokenRequests returns how many tokens were issued for the given grant type.
func (s *Server) TokenRequests(grantType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokenRequests[grantType]
}

// Requests returns "METHOD path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

// Permissions returns a snapshot of every stored permission.
func (s *Server) Permissions() []keycloak.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]keycloak.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, clonePermission(p.Permission))
	}

	return out
}

// SetPermissionField stores a field the module does not model, e.g. roles, on the
// permission called name. It fails the test when there is no such permission.
func (s *Server) SetPermissionField(name, key string, value any) {
	s.t.Helper()

	raw, err := json.Marshal(value)
	if err != nil {
		s.t.Fatalf("keycloaktest: encode %s: %v", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.permissions {
		if p.Name == name {
			if p.Extra == nil {
				p.Extra = map[string]json.RawMessage{}
			}

			p.Extra[key] = raw

			return
		}
	}

	s.t.Fatalf("keycloaktest: no permission %s", name)
}

// Resources returns a snapshot of every stored resource.
func (s *Server) Resources() []keycloak.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]keycloak.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, *r)
	}

	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) nextID(prefix string) string {
	s.seq++

	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *Server) wellKnown(w http.ResponseWriter, r *http.Request) {
	if s.DiscoveryStatus != 0 {
		writeJSON(w, s.DiscoveryStatus, map[string]string{"error": "discovery disabled"})
		return
	}

	base := keycloak.RealmURL(s.URL, r.PathValue("realm"))

	writeJSON(w, http.StatusOK, keycloak.Endpoints{
		Issuer:                       base,
		AuthorizationEndpoint:        base + "/protocol/openid-connect/auth",
		TokenEndpoint:                base + "/protocol/openid-connect/token",
		IntrospectionEndpoint:        base + "/protocol/openid-connect/token/introspect",
		EndSessionEndpoint:           base + "/protocol/openid-connect/logout",
		JWKSURI:                      base + "/protocol/openid-connect/certs",
		ResourceRegistrationEndpoint: base + "/authz/protection/resource_set",
		PermissionEndpoint:           base + "/authz/protection/permission",
		PolicyEndpoint:               base + "/authz/protection/uma-policy",
	})
}

func (s *Server) issue(subject, azp string, ttl time.Duration) string {
	return s.sign(jwt.MapClaims{
		"iss":                keycloak.RealmURL(s.URL, Realm),
		"sub":                subject,
		"preferred_username": subject,
		"azp":                azp,
		"typ":                "Bearer",
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(ttl).Unix(),
	})
}

func (s *Server) sign(claims jwt.MapClaims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		panic(err)
	}

	return signed
}

// subject validates a bearer token issued by this server and returns its username.
func (s *Server) subject(header string) (string, bool) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}

	claims := jwt.MapClaims{}

	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})); err != nil {
		return "", false
	}

	sub, _ := claims["preferred_username"].(string)

	return sub, sub != ""
}

func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.subject(r.Header.Get("Authorization")); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "HTTP 401 Unauthorized"})
			return
		}

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func page[T any](s *Server, r *http.Request, items []T) []T {
	first, _ := strconv.Atoi(r.URL.Query().Get("first"))

	limit := len(items)
	if m, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil && m >= 0 {
		limit = m
	}

	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}

	if first >= len(items) {
		return []T{}
	}

	end := min(first+limit, len(items))

	return items[first:end]
}

func clonePermission(p keycloak.Permission) keycloak.Permission {
	p.Scopes = append([]string{}, p.Scopes...)
	p.Users = append([]string{}, p.Users...)
	p.Groups = append([]string{}, p.Groups...)
	p.Clients = append([]string{}, p.Clients...)
	p.Extra = maps.Clone(p.Extra)

	return p
}
