// Package team exposes teams, their members and their attributes.
//
// Any authenticated user may read teams. Only members of a team may change it.
package team

import (
	"context"
	"errors"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/teams"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

// Path is the path of the team routes.
const Path = "teams"

// IncludeAll is the include parameter value listing every team, not only the caller's.
const IncludeAll = "all"

// Service is the team handler service.
type Service struct {
	handler.Service
	teams     handler.TeamDirectory
	validator *validator.Validate
}

type updateRequest struct {
	Name       *string             `json:"name" validate:"omitempty,min=1"`
	Attributes map[string][]string `json:"attributes"`
}

type membersRequest struct {
	Usernames []string `validate:"dive,required"`
}

// User is the response of the user lookup route.
type User struct {
	Username string  `json:"username"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
}

// Init registers the team routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilAppDepsMsg)
	}

	s.teams = deps.Teams
	s.validator = handler.NewValidator()

	router := app.Group("/"+Path, deps.Authenticate)

	router.Get(handler.RouterRootPath, s.List)
	router.Get("/users/:username", s.GetUser)
	router.Get("/name/:team_name", s.GetByName)
	router.Get("/:team_id", s.Get)
	router.Patch("/:team_id", s.Update)
	router.Get("/:team_id/members", s.Members)
	router.Put("/:team_id/members", s.UpdateMembers)

	return nil
}

// List returns the caller's teams. With include=all every team is returned.
// has_role limits the result to teams with that realm role.
func (s *Service) List(c fiber.Ctx) error {
	all, err := s.teams.ListTeams(c.Context(), c.Query("has_role"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	memberOf, err := s.memberOf(c.Context(), auth.Username(c))
	if err != nil {
		return err
	}

	out := make([]teams.Team, 0, len(all))

	for _, t := range all {
		t.IsMember = slices.Contains(memberOf, t.ID)

		if t.IsMember || c.Query("include") == IncludeAll {
			out = append(out, t)
		}
	}

	return c.JSON(out)
}

// Get returns one team.
func (s *Service) Get(c fiber.Ctx) error {
	t, err := s.teams.GetTeam(c.Context(), c.Params("team_id"), c.Query("has_role"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	return s.respondTeam(c, t)
}

// GetByName returns the team with the given name.
func (s *Service) GetByName(c fiber.Ctx) error {
	t, err := s.teams.GetTeamByName(c.Context(), c.Params("team_name"), c.Query("has_role"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	return s.respondTeam(c, t)
}

// Members returns the members of a team.
func (s *Service) Members(c fiber.Ctx) error {
	members, err := s.teams.GetTeamMembers(c.Context(), c.Params("team_id"), c.Query("has_role"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	return c.JSON(members)
}

// Update renames a team or replaces its attributes.
func (s *Service) Update(c fiber.Ctx) error {
	var req updateRequest

	if err := handler.BindBody(c, s.validator, &req); err != nil {
		return err //nolint:wrapcheck
	}

	id := c.Params("team_id")

	if err := s.requireMember(c, id); err != nil {
		return err
	}

	t, err := s.teams.UpdateTeam(c.Context(), id, req.Name, req.Attributes)
	if err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().Str("principal", auth.Username(c)).Str("team", t.Name).Msg("team updated")

	t.IsMember = true

	return c.JSON(t)
}

// UpdateMembers replaces the members of a team.
func (s *Service) UpdateMembers(c fiber.Ctx) error {
	var req membersRequest

	if err := c.Bind().JSON(&req.Usernames); err != nil {
		return &handler.RequestError{Errors: []handler.FieldError{
			{Loc: []string{"body"}, Msg: "value is not a valid list of usernames"},
		}}
	}

	if err := handler.Validate(s.validator, "body", &req); err != nil {
		return err //nolint:wrapcheck
	}

	id := c.Params("team_id")

	if err := s.requireMember(c, id); err != nil {
		return err
	}

	members, err := s.teams.UpdateMembers(c.Context(), id, req.Usernames)
	if err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().
		Str("principal", auth.Username(c)).
		Str("team_id", id).
		Int("members", len(members)).
		Msg("team members updated")

	return c.JSON(members)
}

// GetUser returns the public profile of a user.
func (s *Service) GetUser(c fiber.Ctx) error {
	u, err := s.teams.GetUser(c.Context(), c.Params("username"))

	switch {
	case errors.Is(err, teams.ErrUserNotFound):
		return handler.Error(fiber.StatusNotFound, "User not found")
	case err != nil:
		return err //nolint:wrapcheck
	}

	m := teams.MemberFromUser(u)

	return c.JSON(User{Username: m.Username, Name: m.Name, Email: m.Email})
}

func (s *Service) respondTeam(c fiber.Ctx, t *teams.Team) error {
	memberOf, err := s.memberOf(c.Context(), auth.Username(c))
	if err != nil {
		return err
	}

	t.IsMember = slices.Contains(memberOf, t.ID)

	return c.JSON(t)
}

// requireMember fails with 404 when the team does not exist and with 403 when
// the caller is not a member of it.
func (s *Service) requireMember(c fiber.Ctx, id string) error {
	if _, err := s.teams.GetTeam(c.Context(), id, ""); err != nil {
		return err //nolint:wrapcheck
	}

	memberOf, err := s.memberOf(c.Context(), auth.Username(c))
	if err != nil {
		return err
	}

	if !slices.Contains(memberOf, id) {
		log.Info().Str("principal", auth.Username(c)).Str("team_id", id).Msg("not a team member")

		return fiber.ErrForbidden
	}

	return nil
}

func (s *Service) memberOf(ctx context.Context, username string) ([]string, error) {
	userTeams, err := s.teams.ListUserTeams(ctx, username)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	ids := make([]string, 0, len(userTeams))
	for _, t := range userTeams {
		ids = append(ids, t.ID)
	}

	return ids, nil
}
