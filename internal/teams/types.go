package teams

import (
	"strings"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// Team attribute names and the group attributes holding them.
var groupAttributes = map[string]string{ //nolint:gochecknoglobals
	"email":     "team-email",
	"slack-url": "team-slack-url",
}

// GroupAttribute returns the Keycloak group attribute of a team attribute.
func GroupAttribute(teamAttribute string) (string, bool) {
	name, ok := groupAttributes[teamAttribute]

	return name, ok
}

// Attributes are the team attributes exposed by the API. Both lists are always present.
type Attributes struct {
	Email    []string `json:"email"`
	SlackURL []string `json:"slack-url"`
}

// Team is a Keycloak group carrying the team prefix.
type Team struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	IsMember   bool       `json:"is_member"`
	Attributes Attributes `json:"attributes"`
}

// Member is a user belonging to a team.
type Member struct {
	ID       string  `json:"-"`
	Username string  `json:"username"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
}

func teamFromGroup(g keycloak.Group) Team {
	return Team{
		ID:   g.ID,
		Name: grantee.GroupPathToTeamName(g.Name),
		Attributes: Attributes{
			Email:    nonNil(g.Attributes[groupAttributes["email"]]),
			SlackURL: nonNil(g.Attributes[groupAttributes["slack-url"]]),
		},
	}
}

func teamsFromGroups(groups []keycloak.Group) []Team {
	out := []Team{}

	for _, g := range groups {
		if grantee.IsTeamGroup(g.Name) {
			out = append(out, teamFromGroup(g))
		}
	}

	return out
}

// MemberFromUser converts a Keycloak user. Name and Email are nil when unset.
func MemberFromUser(u keycloak.User) Member {
	m := Member{ID: u.ID, Username: u.Username}

	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		m.Name = &name
	}

	if u.Email != "" {
		email := u.Email
		m.Email = &email
	}

	return m
}

func nonNil(values []string) []string {
	return append([]string{}, values...)
}
