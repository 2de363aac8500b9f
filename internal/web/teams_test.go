package web_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/teams"
)

func teamNames(ts []teams.Team) map[string]bool {
	out := map[string]bool{}
	for _, t := range ts {
		out[t.Name] = t.IsMember
	}

	return out
}

func TestListTeams(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name     string
		username string
		query    string
		want     map[string]bool
	}{
		{"own teams", "janedoe", "", map[string]bool{"team1": true, "team3": true}},
		{"own teams with role", "misty", "?has_role=" + internalRole, map[string]bool{"team1": true}},
		{"unknown role", "janedoe", "?has_role=unknown", map[string]bool{}},
		{"no teams", "homersimpson", "", map[string]bool{}},
		{"service account", resourceAdmin, "", map[string]bool{}},
		{"all teams", "misty", "?include=all", map[string]bool{"team1": true, "team2": true, "team3": false}},
		{"all teams with role", "misty", "?include=all&has_role=" + internalRole, map[string]bool{"team1": true, "team3": false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := f.do(t, http.MethodGet, "/teams"+tt.query, tt.username, nil)
			require.Equal(t, http.StatusOK, status, string(raw))
			assert.Equal(t, tt.want, teamNames(decode[[]teams.Team](t, raw)))
		})
	}
}

func TestGetTeam(t *testing.T) {
	f := setup(t)

	status, raw := f.do(t, http.MethodGet, "/teams/"+f.team3.ID, "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{
		"id": "`+f.team3.ID+`",
		"name": "team3",
		"is_member": true,
		"attributes": {"email": ["foo@example.org"], "slack-url": []}
	}`, string(raw))

	// non-members can read
	status, raw = f.do(t, http.MethodGet, "/teams/"+f.team3.ID, "homersimpson", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.False(t, decode[teams.Team](t, raw).IsMember)

	status, raw = f.do(t, http.MethodGet, "/teams/"+f.team2.ID+"?has_role="+internalRole, "misty", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"Team not found"}`, string(raw))

	status, _ = f.do(t, http.MethodGet, "/teams/does-not-exist", "janedoe", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetTeamByName(t *testing.T) {
	f := setup(t)

	status, raw := f.do(t, http.MethodGet, "/teams/name/team2", "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	got := decode[teams.Team](t, raw)
	assert.Equal(t, f.team2.ID, got.ID)
	assert.False(t, got.IsMember)

	status, raw = f.do(t, http.MethodGet, "/teams/name/nope", "janedoe", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"Team not found"}`, string(raw))
}

func TestGetTeamMembers(t *testing.T) {
	f := setup(t)

	status, raw := f.do(t, http.MethodGet, "/teams/"+f.team1.ID+"/members", "homersimpson", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `[
		{"username": "janedoe", "name": null, "email": null},
		{"username": "misty", "name": "Misty Williams", "email": "misty@example.org"}
	]`, string(raw))
}

func TestUpdateTeam(t *testing.T) {
	f := setup(t)
	path := "/teams/" + f.team1.ID

	tests := []struct {
		name     string
		path     string
		username string
		body     map[string]any
		status   int
	}{
		{"non member", path, "homersimpson", map[string]any{"name": "renamed"}, http.StatusForbidden},
		{"missing team", "/teams/does-not-exist", "janedoe", map[string]any{"name": "renamed"}, http.StatusNotFound},
		{"name conflict", path, "janedoe", map[string]any{"name": "team2"}, http.StatusConflict},
		{"empty name", path, "janedoe", map[string]any{"name": ""}, http.StatusBadRequest},
		{"rename", path, "janedoe", map[string]any{"name": "renamed"}, http.StatusOK},
		{"attributes", path, "janedoe", map[string]any{
			"attributes": map[string][]string{"email": {"team@example.org"}, "slack-url": {"https://slack"}},
		}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := f.do(t, http.MethodPatch, tt.path, tt.username, tt.body)
			assert.Equal(t, tt.status, status, string(raw))
		})
	}

	status, raw := f.do(t, http.MethodGet, path, "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	got := decode[teams.Team](t, raw)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"team@example.org"}, got.Attributes.Email)
	assert.Equal(t, []string{"https://slack"}, got.Attributes.SlackURL)
}

func TestUpdateTeamMembers(t *testing.T) {
	f := setup(t)
	path := "/teams/" + f.team1.ID + "/members"

	tests := []struct {
		name     string
		path     string
		username string
		body     any
		status   int
		message  string
	}{
		{"non member", path, "homersimpson", []string{"homersimpson"}, http.StatusForbidden, "Forbidden"},
		{"missing team", "/teams/does-not-exist/members", "janedoe", []string{"janedoe"}, http.StatusNotFound, "Team not found"},
		{"unknown user", path, "janedoe", []string{"janedoe", "foo"}, http.StatusNotFound, "User with username foo not found"},
		{"not a list", path, "janedoe", map[string]string{"username": "janedoe"}, http.StatusBadRequest, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := f.do(t, http.MethodPut, tt.path, tt.username, tt.body)
			assert.Equal(t, tt.status, status, string(raw))
			assert.Equal(t, tt.message, decode[map[string]any](t, raw)["message"])
		})
	}

	status, raw := f.do(t, http.MethodPut, path, "janedoe", []string{"janedoe", "homersimpson", "homersimpson"})
	require.Equal(t, http.StatusOK, status, string(raw))

	members := decode[[]teams.Member](t, raw)
	require.Len(t, members, 2)
	assert.ElementsMatch(t, []string{"janedoe", "homersimpson"}, []string{members[0].Username, members[1].Username})
}

func TestGetUser(t *testing.T) {
	f := setup(t)

	status, raw := f.do(t, http.MethodGet, "/teams/users/misty", "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"username":"misty","name":"Misty Williams","email":"misty@example.org"}`, string(raw))

	status, raw = f.do(t, http.MethodGet, "/teams/users/homersimpson", "janedoe", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"username":"homersimpson","name":null,"email":null}`, string(raw))

	status, raw = f.do(t, http.MethodGet, "/teams/users/nobody", "janedoe", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"User not found"}`, string(raw))
}
