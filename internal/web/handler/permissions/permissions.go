// Package permissions lists and updates the permissions of resources.
package permissions

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

const (
	// Path is the path of the permission routes.
	Path = "permissions"

	// MyPath is the path listing the caller's own permissions.
	MyPath = "my_permissions"
)

// Service is the permissions handler service.
type Service struct {
	handler.Service
	rs        handler.ResourceServer
	authz     handler.Authorizer
	validator *validator.Validate
}

type updateRequest struct {
	Scope       string            `json:"scope"        validate:"required"`
	AddUsers    []grantee.Grantee `json:"add_users"    validate:"dive"`
	RemoveUsers []grantee.Grantee `json:"remove_users" validate:"dive"`
}

// MyPermission is the value of each resource in the my_permissions response.
type MyPermission struct {
	Scopes []string `json:"scopes"`
}

// Init registers the permission routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilAppDepsMsg)
	}

	s.rs = deps.Resources
	s.authz = deps.Authorizer
	s.validator = handler.NewValidator()

	resourceAdmin := auth.Require(deps.Authorizer, ResourceAdmin)

	router := app.Group("/" + Path)
	router.Get(handler.RouterRootPath, deps.Authenticate,
		auth.RequireScope(deps.Authorizer, handler.ResourceAdminScope), s.List)
	router.Get("/:resource_name", deps.Authenticate, resourceAdmin, s.Get)
	router.Put("/:resource_name", deps.Authenticate, resourceAdmin, s.Update)

	app.Get("/"+MyPath, deps.Authenticate, s.Mine)

	return nil
}

// ResourceAdmin targets the admin scope of the resource in the resource_name parameter.
func ResourceAdmin(c fiber.Ctx) (string, string) {
	name := c.Params("resource_name")

	return scope.ResourceType(name) + ":admin", name
}

// List returns every permission, optionally filtered by resource, scope or grantee.
func (s *Service) List(c fiber.Ctx) error {
	opts := resourceserver.ListOptions{
		ResourceName: c.Query("resource_name"),
		Scope:        c.Query("scope"),
		UserID:       c.Query("user"),
		TeamID:       c.Query("team"),
		ClientID:     c.Query("client"),
	}

	perms, err := s.rs.ListPermissions(c.Context(), opts)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.JSON(resourceserver.NewOkdataPermissions(perms))
}

// Get returns the permissions of one resource.
func (s *Service) Get(c fiber.Ctx) error {
	perms, err := s.rs.ListPermissions(c.Context(), resourceserver.ListOptions{
		ResourceName: c.Params("resource_name"),
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.JSON(resourceserver.NewOkdataPermissions(perms))
}

// Update adds and removes grantees on the permission of one scope of a resource.
func (s *Service) Update(c fiber.Ctx) error {
	var req updateRequest

	if err := handler.BindBody(c, s.validator, &req); err != nil {
		return err //nolint:wrapcheck
	}

	name := c.Params("resource_name")

	updated, err := s.rs.UpdatePermission(c.Context(), name, req.Scope, req.AddUsers, req.RemoveUsers)
	if err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().
		Str("principal", auth.Username(c)).
		Str("resource", name).
		Str("scope", req.Scope).
		Stringers("add", stringers(req.AddUsers)).
		Stringers("remove", stringers(req.RemoveUsers)).
		Msg("permission updated")

	return c.JSON(resourceserver.NewOkdataPermission(withScope(*updated, req.Scope)))
}

// Mine returns the caller's resources and scopes, keyed by resource name.
func (s *Service) Mine(c fiber.Ctx) error {
	perms, err := s.authz.GetUserPermissions(c.Context(), auth.Bearer(c), c.Query("scope"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	out := make(map[string]MyPermission, len(perms))
	for _, p := range perms {
		if p.ResourceName == "" {
			continue
		}

		out[p.ResourceName] = MyPermission{Scopes: append([]string{}, p.Scopes...)}
	}

	return c.JSON(out)
}

// withScope keeps the permission's scope when Keycloak did not return it.
func withScope(p keycloak.Permission, sc string) keycloak.Permission {
	if len(p.Scopes) == 0 {
		p.Scopes = []string{sc}
	}

	return p
}

func stringers(gs []grantee.Grantee) []fmt.Stringer {
	out := make([]fmt.Stringer, 0, len(gs))
	for _, g := range gs {
		out = append(out, g)
	}

	return out
}
