package resourceserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
)

// Options configures a ResourceServer.
type Options struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string

	// Registry defaults to scope.Default().
	Registry *scope.Registry
	// PageSize defaults to keycloak.DefaultPageSize.
	PageSize int
	// HTTPClient is the base client for every Keycloak request.
	HTTPClient *http.Client
}

// ResourceServer manages resources and permissions of one Keycloak resource server client.
type ResourceServer struct {
	registry  *scope.Registry
	endpoints keycloak.Endpoints
	client    *keycloak.Client
	pageSize  int
	locks     keyedMutex
}

// CreatedResource is the result of CreateResource.
type CreatedResource struct {
	Resource    keycloak.Resource     `json:"resource"`
	Permissions []keycloak.Permission `json:"permissions"`
}

// ListOptions filters ListPermissions. Zero values do not filter.
type ListOptions struct {
	ResourceName string
	Scope        string
	UserID       string
	TeamID       string // bare team name
	ClientID     string
}

// New discovers the realm's UMA endpoints and returns a ResourceServer.
// The service account token is fetched on first use.
func New(ctx context.Context, opts Options) (*ResourceServer, error) {
	if opts.Registry == nil {
		opts.Registry = scope.Default()
	}

	if opts.PageSize <= 0 {
		opts.PageSize = keycloak.DefaultPageSize
	}

	endpoints, err := keycloak.Discover(ctx, keycloak.NewHTTPClient(ctx, opts.HTTPClient, nil), opts.ServerURL, opts.Realm)
	if err != nil {
		return nil, err
	}

	// token refreshes outlive the context New was called with
	tokenCtx := context.WithoutCancel(ctx)
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}

	ts := keycloak.ClientCredentialsTokenSource(tokenCtx, endpoints.TokenEndpoint, opts.ClientID, opts.ClientSecret)

	return &ResourceServer{
		registry:  opts.Registry,
		endpoints: endpoints,
		client:    keycloak.NewClient(tokenCtx, opts.HTTPClient, ts),
		pageSize:  opts.PageSize,
	}, nil
}

// Registry returns the scope registry the server validates against.
func (rs *ResourceServer) Registry() *scope.Registry {
	return rs.registry
}

// CreateResource registers a resource with every scope of its type. When owner is
// given it also creates one permission per scope granted to owner only.
func (rs *ResourceServer) CreateResource(ctx context.Context, name string, owner *grantee.Grantee) (*CreatedResource, error) {
	resourceType := scope.ResourceType(name)

	scopes, err := rs.registry.ScopesForType(resourceType)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var res keycloak.Resource

	err = rs.client.DoJSON(ctx, http.MethodPost, rs.endpoints.ResourceRegistrationEndpoint, keycloak.ResourceRegistration{
		Name:               name,
		Type:               resourceType,
		OwnerManagedAccess: true,
		Scopes:             scopes,
	}, &res)

	switch {
	case keycloak.IsStatus(err, http.StatusConflict):
		return nil, fmt.Errorf("%w: %w", ErrResourceAlreadyExists, err)
	case err != nil:
		return nil, errors.Wrapf(err, "failed to create resource %s", name)
	}

	log.Info().Str("resource", name).Str("id", res.ID).Msg("created resource")

	created := &CreatedResource{Resource: res, Permissions: []keycloak.Permission{}}

	if owner == nil {
		return created, nil
	}

	for _, sc := range scopes {
		p, err := rs.CreatePermission(ctx, res.ID, name, sc, []grantee.Grantee{*owner})
		if err != nil {
			log.Error().Err(err).Str("resource", name).Str("scope", sc).
				Msg("resource created without all of its permissions")

			return nil, err
		}

		created.Permissions = append(created.Permissions, *p)
	}

	return created, nil
}

// CreatePermission creates the permission granting sc on a resource to grantees.
func (rs *ResourceServer) CreatePermission(
	ctx context.Context,
	resourceID, resourceName, sc string,
	grantees []grantee.Grantee,
) (*keycloak.Permission, error) {
	var sets grantee.Sets

	for _, g := range grantees {
		sets.Add(g)
	}

	users, groups, clients := sets.Slices()

	body := keycloak.Permission{
		Name:             scope.PermissionName(resourceName, sc),
		Description:      scope.PermissionDescription(resourceName, sc),
		Type:             keycloak.PermissionType,
		Logic:            keycloak.PermissionLogic,
		DecisionStrategy: keycloak.PermissionDecisionStrategy,
		Scopes:           []string{sc},
		Users:            users,
		Groups:           groups,
		Clients:          clients,
	}

	var created keycloak.Permission

	if err := rs.client.DoJSON(ctx, http.MethodPost, rs.policyURL(resourceID), body, &created); err != nil {
		return nil, errors.Wrapf(err, "failed to create permission %s", body.Name)
	}

	log.Info().Str("permission", created.Name).Str("id", created.ID).Msg("created permission")

	return &created, nil
}

// UpdatePermission adds and then removes grantees on the permission for sc on resourceName.
//
// A missing permission is created with exactly add, or ErrPermissionNotFound is
// returned when add is empty. Removing every grantee of the admin scope fails with
// ErrCannotRemoveOnlyAdmin and changes nothing. Removing every grantee of another
// scope makes Keycloak delete the permission; the last known state is returned then.
func (rs *ResourceServer) UpdatePermission(
	ctx context.Context,
	resourceName, sc string,
	add, remove []grantee.Grantee,
) (*keycloak.Permission, error) {
	if err := rs.registry.ValidateScope(resourceName, sc); err != nil {
		return nil, err //nolint:wrapcheck
	}

	name := scope.PermissionName(resourceName, sc)

	unlock := rs.locks.Lock(name)
	defer unlock()

	current, found, err := rs.lookupPermission(ctx, name)
	if err != nil {
		return nil, err
	}

	if !found {
		if len(add) == 0 {
			return nil, errors.Wrap(ErrPermissionNotFound, name)
		}

		resourceID, err := rs.ResourceID(ctx, resourceName)
		if err != nil {
			return nil, err
		}

		log.Info().Str("permission", name).Msg("permission has no grantees, recreating it")

		return rs.CreatePermission(ctx, resourceID, resourceName, sc, add)
	}

	sets := grantee.NewSets(current.Users, current.Groups, current.Clients)

	for _, g := range add {
		sets.Add(g)
	}

	for _, g := range remove {
		sets.Remove(g)
	}

	if sets.Empty() && scope.IsAdminScope(sc) {
		return nil, errors.Wrap(ErrCannotRemoveOnlyAdmin, name)
	}

	updated := current
	updated.Users, updated.Groups, updated.Clients = sets.Slices()

	if err = rs.client.DoJSON(ctx, http.MethodPut, rs.policyURL(current.ID), updated, nil); err != nil {
		return nil, errors.Wrapf(err, "failed to update permission %s", name)
	}

	if sets.Empty() {
		log.Info().Str("permission", name).Msg("removed last grantee, permission deleted by keycloak")

		return &updated, nil
	}

	refreshed, found, err := rs.lookupPermission(ctx, name)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, errors.Wrap(ErrPermissionNotFound, name)
	}

	return &refreshed, nil
}

// GetPermission returns the permission with exactly the given name.
func (rs *ResourceServer) GetPermission(ctx context.Context, name string) (*keycloak.Permission, error) {
	p, found, err := rs.lookupPermission(ctx, name)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, errors.Wrap(ErrPermissionNotFound, name)
	}

	return &p, nil
}

// ListPermissions returns every permission matching opts, in Keycloak's order.
// Resource and scope are filtered by Keycloak, grantees locally.
func (rs *ResourceServer) ListPermissions(ctx context.Context, opts ListOptions) ([]keycloak.Permission, error) {
	query := url.Values{}

	if opts.ResourceName != "" {
		resourceID, err := rs.ResourceID(ctx, opts.ResourceName)
		if err != nil {
			return nil, err
		}

		query.Set("resource", resourceID)
	}

	if opts.Scope != "" {
		query.Set("scope", opts.Scope)
	}

	perms, err := rs.fetchPermissions(ctx, query)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(perms, func(p keycloak.Permission) bool {
		return !opts.matches(p)
	}), nil
}

func (o ListOptions) matches(p keycloak.Permission) bool {
	if o.UserID != "" && !slices.Contains(p.Users, o.UserID) {
		return false
	}

	if o.TeamID != "" && !slices.Contains(p.Groups, grantee.TeamNameToGroupPath(o.TeamID)) {
		return false
	}

	if o.ClientID != "" && !slices.Contains(p.Clients, o.ClientID) {
		return false
	}

	return true
}

// DeletePermission deletes the permission with the given name.
func (rs *ResourceServer) DeletePermission(ctx context.Context, name string) error {
	p, err := rs.GetPermission(ctx, name)
	if err != nil {
		return err
	}

	if err = rs.client.DoJSON(ctx, http.MethodDelete, rs.policyURL(p.ID), nil, nil); err != nil {
		return errors.Wrapf(err, "failed to delete permission %s", name)
	}

	return nil
}

// DeleteResource deletes a resource. Keycloak deletes its permissions with it.
func (rs *ResourceServer) DeleteResource(ctx context.Context, name string) error {
	id, err := rs.ResourceID(ctx, name)
	if err != nil {
		return err
	}

	if err = rs.client.DoJSON(ctx, http.MethodDelete, rs.resourceURL(id), nil, nil); err != nil {
		return errors.Wrapf(err, "failed to delete resource %s", name)
	}

	log.Info().Str("resource", name).Str("id", id).Msg("deleted resource")

	return nil
}

// ResourceID returns the Keycloak id of the resource with exactly the given name.
func (rs *ResourceServer) ResourceID(ctx context.Context, name string) (string, error) {
	var ids []string

	u := rs.endpoints.ResourceRegistrationEndpoint + "?" + url.Values{"name": {name}}.Encode()
	if err := rs.client.DoJSON(ctx, http.MethodGet, u, nil, &ids); err != nil {
		return "", errors.Wrapf(err, "failed to look up resource %s", name)
	}

	// the name filter is a substring match
	for _, id := range ids {
		var res keycloak.Resource

		if err := rs.client.DoJSON(ctx, http.MethodGet, rs.resourceURL(id), nil, &res); err != nil {
			return "", errors.Wrapf(err, "failed to get resource %s", id)
		}

		if res.Name == name {
			return res.ID, nil
		}
	}

	return "", errors.Wrap(ErrResourceNotFound, name)
}

// lookupPermission reports whether a permission named exactly name exists.
// Provider errors are returned as errors, never as not found.
func (rs *ResourceServer) lookupPermission(ctx context.Context, name string) (keycloak.Permission, bool, error) {
	perms, err := rs.fetchPermissions(ctx, url.Values{"name": {name}})
	if err != nil {
		return keycloak.Permission{}, false, err
	}

	for _, p := range perms {
		if p.Name == name {
			return p, true, nil
		}
	}

	return keycloak.Permission{}, false, nil
}

func (rs *ResourceServer) fetchPermissions(ctx context.Context, query url.Values) ([]keycloak.Permission, error) {
	perms, err := keycloak.Paginate(ctx, rs.pageSize, func(ctx context.Context, first, limit int) ([]keycloak.Permission, error) {
		var page []keycloak.Permission

		err := rs.client.DoJSON(ctx, http.MethodGet, keycloak.PageURL(rs.endpoints.PolicyEndpoint, query, first, limit), nil, &page)

		return page, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list permissions")
	}

	return perms, nil
}

func (rs *ResourceServer) policyURL(id string) string {
	return rs.endpoints.PolicyEndpoint + "/" + url.PathEscape(id)
}

func (rs *ResourceServer) resourceURL(id string) string {
	return rs.endpoints.ResourceRegistrationEndpoint + "/" + url.PathEscape(id)
}
