package teams

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// DefaultAdminClientID is the public client used for the admin password grant.
const DefaultAdminClientID = "admin-cli"

// Options configures a Client.
type Options struct {
	ServerURL string
	Realm     string
	// AdminAPIURL replaces "<ServerURL>/auth" for admin API requests when set.
	// Requests are then authenticated with a proxy JWT.
	AdminAPIURL string
	// ClientID defaults to DefaultAdminClientID.
	ClientID string
	Username string
	Password string

	ProxyJWTIssuer string
	ProxyJWTSecret []byte

	// PageSize defaults to keycloak.DefaultPageSize.
	PageSize int
	// HTTPClient is the base client for every Keycloak request.
	HTTPClient *http.Client
}

// Client reads and updates teams.
type Client struct {
	adminURL string
	client   *keycloak.Client
	pageSize int
}

// New returns a Client logged in as the teams admin user. The admin token is fetched on first use.
func New(ctx context.Context, opts Options) (*Client, error) {
	switch {
	case opts.ServerURL == "":
		return nil, errors.Wrap(ErrConfiguration, "server url is not set")
	case opts.Realm == "":
		return nil, errors.Wrap(ErrConfiguration, "realm is not set")
	case opts.Username == "":
		return nil, errors.Wrap(ErrConfiguration, "admin username is not set")
	}

	if opts.ClientID == "" {
		opts.ClientID = DefaultAdminClientID
	}

	if opts.PageSize <= 0 {
		opts.PageSize = keycloak.DefaultPageSize
	}

	tokenCtx := context.WithoutCancel(ctx)
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}

	ts := keycloak.PasswordTokenSource(tokenCtx, keycloak.TokenURL(opts.ServerURL, opts.Realm),
		opts.ClientID, opts.Username, opts.Password)

	c := &Client{pageSize: opts.PageSize}

	if opts.AdminAPIURL == "" {
		c.adminURL = keycloak.AdminURL(opts.ServerURL, opts.Realm)
		c.client = keycloak.NewClient(tokenCtx, opts.HTTPClient, ts)

		return c, nil
	}

	hc := keycloak.NewHTTPClient(tokenCtx, opts.HTTPClient, nil)
	hc.Transport = &proxyTransport{
		next:   hc.Transport,
		admin:  ts,
		issuer: opts.ProxyJWTIssuer,
		secret: opts.ProxyJWTSecret,
	}

	c.adminURL = strings.TrimSuffix(opts.AdminAPIURL, "/") + "/admin/realms/" + url.PathEscape(opts.Realm)
	c.client = &keycloak.Client{HTTP: hc}

	log.Debug().Msgf("Routing Keycloak admin requests through %s", opts.AdminAPIURL)

	return c, nil
}

// ListTeams returns every team, or only the teams whose group has realmRole when set.
// An unknown realm role yields no teams.
func (c *Client) ListTeams(ctx context.Context, realmRole string) ([]Team, error) {
	path := "/groups"
	if realmRole != "" {
		path = "/roles/" + url.PathEscape(realmRole) + "/groups"
	}

	// attributes are left out of brief representations
	query := url.Values{"briefRepresentation": {"false"}}

	groups, err := listAll[keycloak.Group](ctx, c, path, query)

	switch {
	case realmRole != "" && keycloak.IsStatus(err, http.StatusNotFound):
		return []Team{}, nil
	case err != nil:
		return nil, serverError(err, "failed to list teams")
	}

	return teamsFromGroups(groups), nil
}

// ListUserTeams returns the teams username is a member of. A username unknown to
// Keycloak, such as a service account, has no teams.
func (c *Client) ListUserTeams(ctx context.Context, username string) ([]Team, error) {
	user, err := c.GetUser(ctx, username)

	switch {
	case errors.Is(err, ErrUserNotFound):
		return []Team{}, nil
	case err != nil:
		return nil, err
	}

	var groups []keycloak.Group

	if err = c.client.DoJSON(ctx, http.MethodGet, c.adminURL+"/users/"+url.PathEscape(user.ID)+"/groups", nil, &groups); err != nil {
		return nil, serverError(err, "failed to list user groups")
	}

	return teamsFromGroups(groups), nil
}

// GetUser returns the user with exactly the given username.
func (c *Client) GetUser(ctx context.Context, username string) (keycloak.User, error) {
	var users []keycloak.User

	rawURL := c.adminURL + "/users?" + url.Values{"username": {username}, "exact": {"true"}}.Encode()

	if err := c.client.DoJSON(ctx, http.MethodGet, rawURL, nil, &users); err != nil {
		return keycloak.User{}, serverError(err, "failed to look up user")
	}

	// Keycloak stores usernames in lower case.
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}

	return keycloak.User{}, &UserNotFoundError{Username: username}
}

// GetTeam returns the team with id. When realmRole is set the team's group must have it.
func (c *Client) GetTeam(ctx context.Context, id, realmRole string) (*Team, error) {
	g, err := c.teamGroup(ctx, id, realmRole)
	if err != nil {
		return nil, err
	}

	team := teamFromGroup(g)

	return &team, nil
}

// GetTeamByName returns the team with the bare name.
func (c *Client) GetTeamByName(ctx context.Context, name, realmRole string) (*Team, error) {
	teams, err := c.ListTeams(ctx, realmRole)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(teams, func(t Team) bool { return t.Name == name })
	if idx < 0 {
		return nil, ErrTeamNotFound
	}

	return c.GetTeam(ctx, teams[idx].ID, realmRole)
}

// GetTeamMembers returns the members of the team with id.
func (c *Client) GetTeamMembers(ctx context.Context, id, realmRole string) ([]Member, error) {
	if _, err := c.teamGroup(ctx, id, realmRole); err != nil {
		return nil, err
	}

	return c.members(ctx, id)
}

// UpdateTeam renames the team when name is set, and sets the given attributes.
// Attribute names are those of Attributes; unknown names are ignored and an empty
// value removes the attribute.
func (c *Client) UpdateTeam(ctx context.Context, id string, name *string, attributes map[string][]string) (*Team, error) {
	g, err := c.teamGroup(ctx, id, "")
	if err != nil {
		return nil, err
	}

	if name != nil && *name != "" {
		g.Name = grantee.TeamNameToGroupName(*name)
	}

	if g.Attributes == nil {
		g.Attributes = map[string][]string{}
	}

	for attr, value := range attributes {
		groupAttr, ok := GroupAttribute(attr)
		if !ok {
			continue
		}

		if len(value) > 0 {
			g.Attributes[groupAttr] = value
		} else {
			delete(g.Attributes, groupAttr)
		}
	}

	err = c.client.DoJSON(ctx, http.MethodPut, c.groupURL(id), g, nil)

	switch {
	case keycloak.IsStatus(err, http.StatusConflict):
		return nil, fmt.Errorf("%w: %w", ErrTeamNameExists, err)
	case err != nil:
		return nil, serverError(err, "failed to update team")
	}

	team := teamFromGroup(g)

	return &team, nil
}

// UpdateMembers makes the given usernames the exact membership of the team.
// Every username must exist. Members are added and removed one request at a time,
// so a failure can leave the membership partially updated.
func (c *Client) UpdateMembers(ctx context.Context, id string, usernames []string) ([]Member, error) {
	target := map[string]struct{}{}

	for _, username := range usernames {
		user, err := c.GetUser(ctx, username)
		if err != nil {
			return nil, err
		}

		target[user.ID] = struct{}{}
	}

	current, err := c.GetTeamMembers(ctx, id, "")
	if err != nil {
		return nil, err
	}

	currentIDs := map[string]struct{}{}
	for _, m := range current {
		currentIDs[m.ID] = struct{}{}
	}

	for _, userID := range slices.Sorted(maps.Keys(target)) {
		if _, ok := currentIDs[userID]; ok {
			continue
		}

		if err = c.client.DoJSON(ctx, http.MethodPut, c.membershipURL(userID, id), nil, nil); err != nil {
			return nil, serverError(err, "failed to add team member")
		}
	}

	for _, userID := range slices.Sorted(maps.Keys(currentIDs)) {
		if _, ok := target[userID]; ok {
			continue
		}

		if err = c.client.DoJSON(ctx, http.MethodDelete, c.membershipURL(userID, id), nil, nil); err != nil {
			return nil, serverError(err, "failed to remove team member")
		}
	}

	return c.members(ctx, id)
}

func (c *Client) teamGroup(ctx context.Context, id, realmRole string) (keycloak.Group, error) {
	var g keycloak.Group

	err := c.client.DoJSON(ctx, http.MethodGet, c.groupURL(id), nil, &g)

	switch {
	case keycloak.IsStatus(err, http.StatusNotFound):
		return g, ErrTeamNotFound
	case err != nil:
		return g, serverError(err, "failed to get team")
	}

	if realmRole != "" && !slices.Contains(g.RealmRoles, realmRole) {
		return g, ErrTeamNotFound
	}

	if !grantee.IsTeamGroup(g.Name) {
		return g, ErrTeamNotFound
	}

	return g, nil
}

func (c *Client) members(ctx context.Context, id string) ([]Member, error) {
	users, err := listAll[keycloak.User](ctx, c, "/groups/"+url.PathEscape(id)+"/members", nil)
	if err != nil {
		return nil, serverError(err, "failed to list team members")
	}

	out := make([]Member, 0, len(users))
	for _, u := range users {
		out = append(out, MemberFromUser(u))
	}

	return out, nil
}

func (c *Client) groupURL(id string) string {
	return c.adminURL + "/groups/" + url.PathEscape(id)
}

func (c *Client) membershipURL(userID, groupID string) string {
	return c.adminURL + "/users/" + url.PathEscape(userID) + "/groups/" + url.PathEscape(groupID)
}

func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	return keycloak.Paginate(ctx, c.pageSize, func(ctx context.Context, first, limit int) ([]T, error) {
		var page []T

		err := c.client.DoJSON(ctx, http.MethodGet, keycloak.PageURL(c.adminURL+path, query, first, limit), nil, &page)

		return page, err
	})
}

func serverError(err error, msg string) error {
	log.Error().Err(err).Msg(msg)

	return fmt.Errorf("%w: %w", ErrTeamsServer, errors.Wrap(err, msg))
}
