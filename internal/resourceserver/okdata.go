package resourceserver

import (
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
)

// OkdataPermission is the application view of a permission. Teams are bare team names.
type OkdataPermission struct {
	ResourceName string   `json:"resource_name"`
	Description  string   `json:"description"`
	Scope        string   `json:"scope"`
	Teams        []string `json:"teams"`
	Users        []string `json:"users"`
	Clients      []string `json:"clients"`
}

// NewOkdataPermission converts a Keycloak permission into its application view.
func NewOkdataPermission(p keycloak.Permission) OkdataPermission {
	var sc string

	if len(p.Scopes) > 0 {
		sc = p.Scopes[0]
	}

	if len(p.Scopes) > 1 {
		log.Warn().Strs("scopes", p.Scopes[1:]).Str("permission", p.Name).Msg("got unexpected additional scopes")
	}

	teams := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		teams = append(teams, grantee.GroupPathToTeamName(g))
	}

	return OkdataPermission{
		ResourceName: scope.ResourceNameFromPermissionName(p.Name),
		Description:  p.Description,
		Scope:        sc,
		Teams:        teams,
		Users:        nonNil(p.Users),
		Clients:      nonNil(p.Clients),
	}
}

// NewOkdataPermissions converts a list of Keycloak permissions.
func NewOkdataPermissions(perms []keycloak.Permission) []OkdataPermission {
	out := make([]OkdataPermission, 0, len(perms))
	for _, p := range perms {
		out = append(out, NewOkdataPermission(p))
	}

	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
