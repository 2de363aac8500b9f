package keycloak

import (
	"bytes"
	"encoding/json"
)

// Fixed attributes of every permission managed by this service.
const (
	PermissionType             = "uma"
	PermissionLogic            = "POSITIVE"
	PermissionDecisionStrategy = "AFFIRMATIVE"
)

// Resource is a UMA resource as returned by the resource registration endpoint.
type Resource struct {
	ID                 string   `json:"_id,omitempty"`
	Name               string   `json:"name"`
	Type               string   `json:"type,omitempty"`
	OwnerManagedAccess bool     `json:"ownerManagedAccess"`
	Scopes             []Scope  `json:"resource_scopes,omitempty"`
	URIs               []string `json:"uris,omitempty"`
}

// Scope is a UMA scope as embedded in a Resource.
type Scope struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ResourceRegistration is the body sent to create a resource.
type ResourceRegistration struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	OwnerManagedAccess bool     `json:"ownerManagedAccess"`
	Scopes             []string `json:"scopes"`
}

// Permission is a UMA policy as handled by the policy endpoint.
// Groups holds group paths ("/TEAM-foo"), never bare team names.
//
// Fields without a struct field, e.g. roles or condition, are kept in Extra and
// written back on encoding, so a decoded permission can be PUT unchanged.
type Permission struct {
	ID               string   `json:"id,omitempty"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Type             string   `json:"type,omitempty"`
	Logic            string   `json:"logic,omitempty"`
	DecisionStrategy string   `json:"decisionStrategy,omitempty"`
	Owner            string   `json:"owner,omitempty"`
	Scopes           []string `json:"scopes"`
	Users            []string `json:"users"`
	Groups           []string `json:"groups"`
	Clients          []string `json:"clients"`

	Extra map[string]json.RawMessage `json:"-"`
}

// permissionFields are the JSON keys of the struct fields of Permission.
var permissionFields = []string{ //nolint:gochecknoglobals
	"id", "name", "description", "type", "logic", "decisionStrategy", "owner",
	"scopes", "users", "groups", "clients",
}

// plainPermission has the fields of Permission without its JSON methods.
type plainPermission Permission

// MarshalJSON encodes p with its Extra fields. Struct fields win over Extra.
func (p Permission) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainPermission(p))
	if err != nil || len(p.Extra) == 0 {
		return data, err //nolint:wrapcheck
	}

	var out map[string]json.RawMessage
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, err //nolint:wrapcheck
	}

	for k, v := range p.Extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	return json.Marshal(out) //nolint:wrapcheck
}

// UnmarshalJSON decodes p and keeps every unknown field, compacted, in Extra.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var fields plainPermission
	if err := json.Unmarshal(data, &fields); err != nil {
		return err //nolint:wrapcheck
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err //nolint:wrapcheck
	}

	for _, k := range permissionFields {
		delete(extra, k)
	}

	for k, v := range extra {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err //nolint:wrapcheck
		}

		extra[k] = buf.Bytes()
	}

	if len(extra) == 0 {
		extra = nil
	}

	fields.Extra = extra
	*p = Permission(fields)

	return nil
}

// Group is a group as returned by the admin API.
type Group struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Path        string              `json:"path,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	RealmRoles  []string            `json:"realmRoles,omitempty"`
	SubGroups   []Group             `json:"subGroups,omitempty"`
	ClientRoles map[string][]string `json:"clientRoles,omitempty"`
}

// User is a user as returned by the admin API.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Enabled   bool   `json:"enabled"`
}
