package keycloaktest

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// UMATicketGrant is the grant type of the authorization request.
const UMATicketGrant = "urn:ietf:params:oauth:grant-type:uma-ticket"

type umaPermission struct {
	ResourceID   string   `json:"rsid,omitempty"`
	ResourceName string   `json:"rsname,omitempty"`
	Scopes       []string `json:"scopes"`
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	grantType := r.PostForm.Get("grant_type")

	s.mu.Lock()
	s.tokenRequests[grantType]++
	s.mu.Unlock()

	switch grantType {
	case "client_credentials":
		if r.PostForm.Get("client_id") != ClientID || r.PostForm.Get("client_secret") != ClientSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized_client",
				"error_description": "Invalid client secret",
			})

			return
		}

		s.writeToken(w, s.issue("service-account-"+ClientID, ClientID, s.TokenTTL))
	case "password":
		if r.PostForm.Get("username") != AdminUser || r.PostForm.Get("password") != AdminPass {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid user credentials",
			})

			return
		}

		s.writeToken(w, s.issue(AdminUser, r.PostForm.Get("client_id"), s.TokenTTL))
	case UMATicketGrant:
		s.umaTicket(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (s *Server) writeToken(w http.ResponseWriter, accessToken string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(s.TokenTTL.Seconds()),
	})
}

func (s *Server) umaTicket(w http.ResponseWriter, r *http.Request) {
	username, ok := s.subject(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}

	if r.PostForm.Get("audience") != ClientID {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client",
			"error_description": "Client does not support permissions",
		})

		return
	}

	requested := r.PostForm["permission"]

	s.mu.Lock()
	unknown := s.unknownResource(requested)
	held := s.heldPermissions(username)
	s.mu.Unlock()

	if unknown != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_resource",
			"error_description": "Resource with id [" + unknown + "] does not exist.",
		})

		return
	}
	granted := filterHeld(held, requested)

	if r.PostForm.Get("response_mode") == "decision" {
		if len(requested) == 0 || len(granted) == 0 {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":             "access_denied",
				"error_description": "not_authorized",
			})

			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"result": true})

		return
	}

	if len(requested) == 0 {
		granted = held
	}

	if len(granted) == 0 {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":             "access_denied",
			"error_description": "not_authorized",
		})

		return
	}

	s.writeToken(w, s.sign(jwt.MapClaims{
		"sub":                username,
		"preferred_username": username,
		"exp":                time.Now().Add(s.TokenTTL).Unix(),
		"authorization":      map[string]any{"permissions": granted},
	}))
}

// heldPermissions evaluates every permission for username. Callers hold s.mu.
func (s *Server) heldPermissions(username string) []umaPermission {
	var (
		held     []umaPermission
		byName   = map[string]int{}
		userID   string
		groupSet = map[string]struct{}{}
	)

	for _, u := range s.users {
		if u.Username == username {
			userID = u.ID
		}
	}

	for _, g := range s.groups {
		if slices.Contains(s.members[g.ID], userID) && userID != "" {
			groupSet["/"+g.Name] = struct{}{}
		}
	}

	for _, p := range s.permissions {
		match := slices.Contains(p.Users, username) || slices.Contains(p.Clients, username)

		for _, g := range p.Groups {
			if _, ok := groupSet[g]; ok {
				match = true
			}
		}

		if !match {
			continue
		}

		var resourceName string

		for _, res := range s.resources {
			if res.ID == p.resourceID {
				resourceName = res.Name
			}
		}

		i, seen := byName[resourceName]
		if !seen {
			held = append(held, umaPermission{ResourceID: p.resourceID, ResourceName: resourceName})
			i = len(held) - 1
			byName[resourceName] = i
		}

		for _, sc := range p.Scopes {
			if !slices.Contains(held[i].Scopes, sc) {
				held[i].Scopes = append(held[i].Scopes, sc)
			}
		}
	}

	if scopes := s.grants[username]; len(scopes) > 0 {
		held = append(held, umaPermission{Scopes: append([]string(nil), scopes...)})
	}

	return held
}

// unknownResource returns the first requested resource that is not registered.
// Callers hold s.mu.
func (s *Server) unknownResource(requested []string) string {
	for _, req := range requested {
		resource, _, _ := strings.Cut(req, "#")
		if resource == "" {
			continue
		}

		if !slices.ContainsFunc(s.resources, func(res *keycloak.Resource) bool { return res.Name == resource }) {
			return resource
		}
	}

	return ""
}

// filterHeld keeps the held permissions matching any "resource#scope" request.
// An empty resource part matches every resource.
func filterHeld(held []umaPermission, requested []string) []umaPermission {
	var out []umaPermission

	for _, h := range held {
		var scopes []string

		for _, req := range requested {
			resource, sc, _ := strings.Cut(req, "#")
			if resource != "" && resource != h.ResourceName {
				continue
			}

			if sc == "" {
				scopes = append(scopes, h.Scopes...)
				continue
			}

			if slices.Contains(h.Scopes, sc) && !slices.Contains(scopes, sc) {
				scopes = append(scopes, sc)
			}
		}

		if len(scopes) > 0 {
			out = append(out, umaPermission{ResourceID: h.ResourceID, ResourceName: h.ResourceName, Scopes: scopes})
		}
	}

	return out
}
