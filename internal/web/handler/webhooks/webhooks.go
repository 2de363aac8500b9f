// Package webhooks manages the tokens webhooks use to access a dataset.
package webhooks

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
	"github.com/oslokommune/okdata-permission-api/internal/webhook"
)

const (
	// Path is the path of the webhook routes.
	Path = "webhooks"

	// DatasetAdminScope lets a caller manage the webhook tokens of a dataset.
	DatasetAdminScope = "okdata:dataset:admin"

	datasetResourcePrefix = "okdata:dataset:"
)

// Service is the webhooks handler service.
type Service struct {
	handler.Service
	store     handler.WebhookStore
	validator *validator.Validate
}

type createRequest struct {
	Operation string `json:"operation" validate:"required,oneof=read write"`
}

type authorizeQuery struct {
	Operation string `json:"operation" validate:"required,oneof=read write"`
}

// Init registers the webhook routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilAppDepsMsg)
	}

	s.store = deps.Webhooks
	s.validator = handler.NewValidator()

	datasetAdmin := auth.Require(deps.Authorizer, DatasetAdmin)

	router := app.Group("/"+Path+"/:dataset_id/tokens", deps.Authenticate)

	router.Post(handler.RouterRootPath, datasetAdmin, s.Create)
	router.Get(handler.RouterRootPath, datasetAdmin, s.List)
	router.Delete("/:token", datasetAdmin, s.Delete)
	router.Get("/:token/authorize", s.Authorize)

	return nil
}

// DatasetAdmin targets the admin scope of the dataset in the dataset_id parameter.
func DatasetAdmin(c fiber.Ctx) (string, string) {
	return DatasetAdminScope, datasetResourcePrefix + c.Params("dataset_id")
}

// Create issues a token. Its secret is only part of this response.
func (s *Service) Create(c fiber.Ctx) error {
	var req createRequest

	if err := handler.BindBody(c, s.validator, &req); err != nil {
		return err //nolint:wrapcheck
	}

	op, err := webhook.ParseOperation(req.Operation)
	if err != nil {
		return err //nolint:wrapcheck
	}

	token, err := s.store.Create(c.Params("dataset_id"), op, auth.Username(c))
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.Status(fiber.StatusCreated).JSON(token)
}

// List returns the active tokens of a dataset.
func (s *Service) List(c fiber.Ctx) error {
	tokens, err := s.store.List(c.Params("dataset_id"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.JSON(tokens)
}

// Delete deactivates a token.
func (s *Service) Delete(c fiber.Ctx) error {
	datasetID, token := c.Params("dataset_id"), c.Params("token")

	err := s.store.Delete(datasetID, token)

	switch {
	case errors.Is(err, webhook.ErrTokenNotFound):
		return handler.Error(fiber.StatusNotFound,
			fmt.Sprintf("Provided token does not exist for dataset %s", datasetID))
	case err != nil:
		return err //nolint:wrapcheck
	}

	log.Info().Str("principal", auth.Username(c)).Str("dataset", datasetID).Msg("webhook token deleted")

	return c.JSON(fiber.Map{"message": fmt.Sprintf("Deleted %s for dataset %s", token, datasetID)})
}

// Authorize tells whether a token secret grants an operation on a dataset.
func (s *Service) Authorize(c fiber.Ctx) error {
	q := authorizeQuery{Operation: c.Query("operation")}

	if err := handler.Validate(s.validator, "query", &q); err != nil {
		return err //nolint:wrapcheck
	}

	op, err := webhook.ParseOperation(q.Operation)
	if err != nil {
		return err //nolint:wrapcheck
	}

	result, err := s.store.Authorize(c.Params("dataset_id"), c.Params("token"), op)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.JSON(result)
}
