package keycloaktest

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// AddUser stores u and returns it with its generated id.
func (s *Server) AddUser(u keycloak.User) keycloak.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = s.nextID("user")
	u.Enabled = true
	s.users = append(s.users, &u)

	return u
}

// DeleteUser removes a user and its group memberships.
func (s *Server) DeleteUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.users {
		if u.Username == username {
			for gid, ids := range s.members {
				s.members[gid] = slices.DeleteFunc(ids, func(id string) bool { return id == u.ID })
			}

			s.users = slices.Delete(s.users, i, i+1)

			return
		}
	}
}

// AddGroup stores a top-level group with the given realm roles.
func (s *Server) AddGroup(name string, attributes map[string][]string, realmRoles ...string) keycloak.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &keycloak.Group{
		ID:         s.nextID("group"),
		Name:       name,
		Path:       "/" + name,
		Attributes: maps.Clone(attributes),
		RealmRoles: realmRoles,
	}

	if g.Attributes == nil {
		g.Attributes = map[string][]string{}
	}

	for _, role := range realmRoles {
		s.roles[role] = append(s.roles[role], g.ID)
	}

	s.groups = append(s.groups, g)

	return *g
}

// AddRole defines a realm role, so that listing its groups does not fail.
func (s *Server) AddRole(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role]; !ok {
		s.roles[role] = nil
	}
}

// AddMember adds a user to a group.
func (s *Server) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.members[groupID], userID) {
		s.members[groupID] = append(s.members[groupID], userID)
	}
}

// Group returns a snapshot of a group.
func (s *Server) Group(id string) (keycloak.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.group(id); g != nil {
		out := *g
		out.Attributes = maps.Clone(g.Attributes)

		return out, true
	}

	return keycloak.Group{}, false
}

func (s *Server) registerAdmin(mux *http.ServeMux, base string) {
	mux.HandleFunc("GET "+base+"/groups", s.admin(s.listGroups))
	mux.HandleFunc("GET "+base+"/groups/{id}", s.admin(s.getGroup))
	mux.HandleFunc("PUT "+base+"/groups/{id}", s.admin(s.updateGroup))
	mux.HandleFunc("GET "+base+"/groups/{id}/members", s.admin(s.groupMembers))
	mux.HandleFunc("GET "+base+"/roles/{role}/groups", s.admin(s.roleGroups))
	mux.HandleFunc("GET "+base+"/users", s.admin(s.findUsers))
	mux.HandleFunc("GET "+base+"/users/{id}", s.admin(s.getUser))
	mux.HandleFunc("GET "+base+"/users/{id}/groups", s.admin(s.userGroups))
	mux.HandleFunc("PUT "+base+"/users/{id}/groups/{groupID}", s.admin(s.addUserToGroup))
	mux.HandleFunc("DELETE "+base+"/users/{id}/groups/{groupID}", s.admin(s.removeUserFromGroup))
}

// admin checks the admin token, and the proxy JWT when ProxySecret is set.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminHeader := r.Header.Get("Authorization")

		if s.ProxySecret != nil {
			raw, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if _, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
				return s.ProxySecret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt()); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid proxy token"})
				return
			}

			adminHeader = r.Header.Get("Keycloak-Authorization")
		}

		if sub, ok := s.subject(adminHeader); !ok || sub != AdminUser {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "HTTP 401 Unauthorized"})
			return
		}

		next(w, r)
	}
}

// group returns the group with id. Callers hold s.mu.
func (s *Server) group(id string) *keycloak.Group {
	for _, g := range s.groups {
		if g.ID == id {
			return g
		}
	}

	return nil
}

// user returns the user with id. Callers hold s.mu.
func (s *Server) user(id string) *keycloak.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}

	return nil
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]keycloak.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *g)
	}

	writeJSON(w, http.StatusOK, page(s, r, out))
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.group(r.PathValue("id")); g != nil {
		writeJSON(w, http.StatusOK, g)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Could not find group by id"})
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	var body keycloak.Group

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.group(r.PathValue("id"))
	if g == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Could not find group by id"})
		return
	}

	for _, other := range s.groups {
		if other.ID != g.ID && other.Name == body.Name {
			writeJSON(w, http.StatusConflict, map[string]string{
				"errorMessage": "Top level group named '" + body.Name + "' already exists.",
			})

			return
		}
	}

	g.Name = body.Name
	g.Path = "/" + body.Name
	g.Attributes = maps.Clone(body.Attributes)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) groupMembers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.group(r.PathValue("id")) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Could not find group by id"})
		return
	}

	out := []keycloak.User{}

	for _, id := range s.members[r.PathValue("id")] {
		if u := s.user(id); u != nil {
			out = append(out, *u)
		}
	}

	writeJSON(w, http.StatusOK, page(s, r, out))
}

func (s *Server) roleGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.roles[r.PathValue("role")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Could not find role"})
		return
	}

	out := []keycloak.Group{}

	for _, id := range ids {
		if g := s.group(id); g != nil {
			out = append(out, *g)
		}
	}

	writeJSON(w, http.StatusOK, page(s, r, out))
}

func (s *Server) findUsers(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	exact := r.URL.Query().Get("exact") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []keycloak.User{}

	for _, u := range s.users {
		if (exact && u.Username == username) || (!exact && strings.Contains(u.Username, username)) {
			out = append(out, *u)
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.user(r.PathValue("id")); u != nil {
		writeJSON(w, http.StatusOK, u)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
}

func (s *Server) userGroups(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user(id) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}

	out := []keycloak.Group{}

	for _, g := range s.groups {
		if slices.Contains(s.members[g.ID], id) {
			out = append(out, *g)
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addUserToGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, groupID := r.PathValue("id"), r.PathValue("groupID")

	if s.user(id) == nil || s.group(groupID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	if !slices.Contains(s.members[groupID], id) {
		s.members[groupID] = append(s.members[groupID], id)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeUserFromGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, groupID := r.PathValue("id"), r.PathValue("groupID")

	if s.user(id) == nil || s.group(groupID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	s.members[groupID] = slices.DeleteFunc(s.members[groupID], func(m string) bool { return m == id })

	w.WriteHeader(http.StatusNoContent)
}
