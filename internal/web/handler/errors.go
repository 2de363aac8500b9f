package handler

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
	"github.com/oslokommune/okdata-permission-api/internal/teams"
	"github.com/oslokommune/okdata-permission-api/internal/webhook"
)

// Response messages.
const (
	MsgBadRequest  = "Bad Request"
	MsgServerError = "Server error"
	MsgOnlyAdmin   = "Cannot remove the only admin for resource"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one invalid part of a request.
type FieldError struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

// RequestError is a request failing validation. It is answered with 400.
type RequestError struct {
	Errors []FieldError
}

func (e *RequestError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid request"
	}

	return "invalid request: " + e.Errors[0].Msg
}

// Error returns an error answered with status and message.
func Error(status int, message string) error {
	return fiber.NewError(status, message)
}

// ErrorHandler is the app's error handler. It maps errors of the domain
// packages to status codes. Unexpected errors are logged and answered with 500.
func ErrorHandler(c fiber.Ctx, err error) error {
	status, body := classify(err)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Str("path", c.Path()).Msg("request rejected")
	}

	return c.Status(status).JSON(body)
}

func classify(err error) (int, ErrorResponse) {
	var (
		requestErr  *RequestError
		fiberErr    *fiber.Error
		userErr     *teams.UserNotFoundError
		providerErr *keycloak.ProviderError
	)

	switch {
	case errors.As(err, &requestErr):
		return http.StatusBadRequest, ErrorResponse{Message: MsgBadRequest, Errors: requestErr.Errors}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, ErrorResponse{Message: fiberErr.Message}
	case errors.As(err, &userErr):
		return http.StatusNotFound, ErrorResponse{Message: userErr.Error()}
	case errors.Is(err, resourceserver.ErrCannotRemoveOnlyAdmin):
		return http.StatusBadRequest, ErrorResponse{Message: MsgOnlyAdmin}
	case errors.Is(err, scope.ErrUnknownResourceType),
		errors.Is(err, scope.ErrUnknownScope),
		errors.Is(err, grantee.ErrUnknownKind),
		errors.Is(err, webhook.ErrUnknownOperation):
		return http.StatusBadRequest, ErrorResponse{Message: err.Error()}
	case errors.Is(err, resourceserver.ErrResourceNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Resource not found"}
	case errors.Is(err, resourceserver.ErrPermissionNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Permission not found"}
	case errors.Is(err, teams.ErrTeamNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Team not found"}
	case errors.Is(err, resourceserver.ErrResourceAlreadyExists),
		errors.Is(err, teams.ErrTeamNameExists):
		return http.StatusConflict, ErrorResponse{Message: describe(err, http.StatusText(http.StatusConflict))}
	case errors.As(err, &providerErr) && providerErr.StatusCode == http.StatusBadRequest:
		return http.StatusBadRequest, ErrorResponse{Message: describe(err, MsgBadRequest)}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: MsgServerError}
	}
}

// describe returns Keycloak's description of err, or fallback.
func describe(err error, fallback string) string {
	var pe *keycloak.ProviderError

	if errors.As(err, &pe) {
		if desc := pe.ErrorDescription(); desc != "" {
			return desc
		}
	}

	return fallback
}
