package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

const (
	// LocalPrincipal is the fiber local holding the caller's username.
	LocalPrincipal = "principal"

	// LocalBearer is the fiber local holding the caller's raw access token.
	LocalBearer = "bearer"
)

// Principal is the authenticated caller.
type Principal struct {
	Username string
	Subject  string
}

// Verifier validates an access token and returns its principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// AccessChecker decides whether a bearer token holds a scope.
type AccessChecker interface {
	HasAccess(ctx context.Context, bearer, scope, resourceName string) (bool, error)
}

// Target returns the scope and resource a request must be authorized for.
// An empty resource checks the scope without a resource.
type Target func(c fiber.Ctx) (scope, resourceName string)

// New returns a middleware authenticating requests with verifier.
func New(verifier Verifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"detail": "Not authenticated"})
		}

		principal, err := verifier.Verify(c.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("rejected access token")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid access token"})
		}

		c.Locals(LocalPrincipal, principal.Username)
		c.Locals(LocalBearer, token)

		return c.Next()
	}
}

// Require returns a middleware letting only callers authorized for target pass.
// Errors from checker are handed to the app's error handler.
func Require(checker AccessChecker, target Target) fiber.Handler {
	return func(c fiber.Ctx) error {
		sc, resourceName := target(c)

		ok, err := checker.HasAccess(c.Context(), Bearer(c), sc, resourceName)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if !ok {
			log.Info().
				Str("principal", Username(c)).
				Str("scope", sc).
				Str("resource", resourceName).
				Msg("access denied")

			return fiber.ErrForbidden
		}

		return c.Next()
	}
}

// RequireScope is Require for a scope not tied to any resource.
func RequireScope(checker AccessChecker, sc string) fiber.Handler {
	return Require(checker, func(fiber.Ctx) (string, string) {
		return sc, ""
	})
}

// Username returns the authenticated caller, or "" on unguarded routes.
func Username(c fiber.Ctx) string {
	username, _ := c.Locals(LocalPrincipal).(string)
	return username
}

// Bearer returns the caller's raw access token, or "" on unguarded routes.
func Bearer(c fiber.Ctx) string {
	token, _ := c.Locals(LocalBearer).(string)
	return token
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
