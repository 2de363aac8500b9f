// Package resources creates and deletes Keycloak resources.
package resources

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

const (
	// Path is the path of the resource routes.
	Path = "resources"

	// LegacyPath accepts resource creation on the permissions path.
	LegacyPath = "permissions"
)

// Service is the resources handler service.
type Service struct {
	handler.Service
	rs        handler.ResourceServer
	validator *validator.Validate
}

type createRequest struct {
	ResourceName string           `json:"resource_name" validate:"required"`
	Owner        *grantee.Grantee `json:"owner"         validate:"omitempty"`
}

// Init registers the resource routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilAppDepsMsg)
	}

	s.rs = deps.Resources
	s.validator = handler.NewValidator()

	admin := auth.RequireScope(deps.Authorizer, handler.ResourceAdminScope)

	app.Post("/"+Path, deps.Authenticate, admin, s.Create)
	app.Post("/"+LegacyPath, deps.Authenticate, admin, s.Create)
	app.Delete("/"+Path+"/:resource_name", deps.Authenticate, admin, s.Delete)

	return nil
}

// Create registers a resource and, when an owner is given, its permissions.
func (s *Service) Create(c fiber.Ctx) error {
	var req createRequest

	if err := handler.BindBody(c, s.validator, &req); err != nil {
		return err //nolint:wrapcheck
	}

	if err := s.rs.Registry().ValidateResourceName(req.ResourceName); err != nil {
		return &handler.RequestError{Errors: []handler.FieldError{
			{Loc: []string{"body", "resource_name"}, Msg: err.Error()},
		}}
	}

	if _, err := s.rs.CreateResource(c.Context(), req.ResourceName, req.Owner); err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().
		Str("principal", auth.Username(c)).
		Str("resource", req.ResourceName).
		Msg("resource created")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Created"})
}

// Delete removes a resource. Keycloak deletes its permissions.
func (s *Service) Delete(c fiber.Ctx) error {
	name := c.Params("resource_name")

	if err := s.rs.DeleteResource(c.Context(), name); err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().Str("principal", auth.Username(c)).Str("resource", name).Msg("resource deleted")

	return c.JSON(fiber.Map{"message": "Deleted"})
}
