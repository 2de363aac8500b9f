package keycloaktest

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	var body keycloak.ResourceRegistration

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range s.resources {
		if res.Name == body.Name {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":             "conflict",
				"error_description": "Resource with name [" + body.Name + "] already exists.",
			})

			return
		}
	}

	res := &keycloak.Resource{
		ID:                 s.nextID("res"),
		Name:               body.Name,
		Type:               body.Type,
		OwnerManagedAccess: body.OwnerManagedAccess,
	}

	for _, sc := range body.Scopes {
		res.Scopes = append(res.Scopes, keycloak.Scope{ID: s.nextID("scope"), Name: sc})
	}

	s.resources = append(s.resources, res)

	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) findResources(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []string{}

	for _, res := range s.resources {
		if strings.Contains(strings.ToLower(res.Name), strings.ToLower(name)) {
			ids = append(ids, res.ID)
		}
	}

	writeJSON(w, http.StatusOK, page(s, r, ids))
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range s.resources {
		if res.ID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, res)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "Resource not found"})
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.resources, func(res *keycloak.Resource) bool { return res.ID == id })
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "Resource not found"})
		return
	}

	s.resources = slices.Delete(s.resources, i, i+1)
	s.permissions = slices.DeleteFunc(s.permissions, func(p *permission) bool { return p.resourceID == id })

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createPermission(w http.ResponseWriter, r *http.Request) {
	var body keycloak.Permission

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	resourceID := r.PathValue("resourceID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.resources, func(res *keycloak.Resource) bool { return res.ID == resourceID }) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_request",
			"error_description": "Resource [" + resourceID + "] cannot be found",
		})

		return
	}

	for _, p := range s.permissions {
		if p.Name == body.Name {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":             "conflict",
				"error_description": "Policy with name [" + body.Name + "] already exists",
			})

			return
		}
	}

	body = clonePermission(body)
	body.ID = s.nextID("perm")
	body.Type = keycloak.PermissionType
	body.Owner = ClientID

	s.permissions = append(s.permissions, &permission{Permission: body, resourceID: resourceID})

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []keycloak.Permission{}

	for _, p := range s.permissions {
		if name := q.Get("name"); name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			continue
		}

		if res := q.Get("resource"); res != "" && p.resourceID != res {
			continue
		}

		if sc := q.Get("scope"); sc != "" && !slices.Contains(p.Scopes, sc) {
			continue
		}

		matches = append(matches, clonePermission(p.Permission))
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

	writeJSON(w, http.StatusOK, page(s, r, matches))
}

func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.permissions {
		if p.ID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, p.Permission)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "Policy not found"})
}

// updatePermission replaces the grantees of a permission. Like Keycloak it deletes
// the permission when no grantee is left.
func (s *Server) updatePermission(w http.ResponseWriter, r *http.Request) {
	var body keycloak.Permission

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.permissions, func(p *permission) bool { return p.ID == id })
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "Policy not found"})
		return
	}

	if len(body.Users) == 0 && len(body.Groups) == 0 && len(body.Clients) == 0 {
		s.permissions = slices.Delete(s.permissions, i, i+1)
		w.WriteHeader(http.StatusNoContent)

		return
	}

	p := s.permissions[i]
	p.Description = body.Description
	p.Users = append([]string{}, body.Users...)
	p.Groups = append([]string{}, body.Groups...)
	p.Clients = append([]string{}, body.Clients...)
	p.Extra = maps.Clone(body.Extra)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.permissions, func(p *permission) bool { return p.ID == id })
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "error_description": "Policy not found"})
		return
	}

	s.permissions = slices.Delete(s.permissions, i, i+1)

	w.WriteHeader(http.StatusNoContent)
}
