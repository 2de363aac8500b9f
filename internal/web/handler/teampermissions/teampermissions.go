// Package teampermissions removes a team from every permission it holds.
package teampermissions

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

// Path is the path of the team permission routes.
const Path = "remove_team_permissions"

// Service is the team permissions handler service.
type Service struct {
	handler.Service
	rs handler.ResourceServer
}

// Init registers the team permission routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilAppDepsMsg)
	}

	s.rs = deps.Resources

	app.Put("/"+Path+"/:team_name", deps.Authenticate,
		auth.RequireScope(deps.Authorizer, handler.TeamAdminScope), s.Remove)

	return nil
}

// Remove strips the team from every permission. Permissions where the team is
// the only admin are left as they are.
func (s *Service) Remove(c fiber.Ctx) error {
	team := c.Params("team_name")

	stripped, err := backup.StripGrantee(c.Context(), s.rs, grantee.Team(team), true)
	if err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().
		Str("principal", auth.Username(c)).
		Str("team", team).
		Int("permissions", len(stripped)).
		Msg("removed team from permissions")

	return c.JSON(fiber.Map{"message": fmt.Sprintf("Removed all permissions associated with %s", team)})
}
