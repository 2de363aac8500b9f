package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/oslokommune/okdata-permission-api/internal/authorizer"
	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
	"github.com/oslokommune/okdata-permission-api/internal/teams"
	"github.com/oslokommune/okdata-permission-api/internal/webhook"
)

// Deps are the services shared by every handler.
type Deps struct {
	// Authenticate guards every route except health and metrics.
	Authenticate fiber.Handler

	Authorizer Authorizer
	Resources  ResourceServer
	Teams      TeamDirectory
	Webhooks   WebhookStore
}

// Authorizer is implemented by *authorizer.Authorizer.
type Authorizer interface {
	HasAccess(ctx context.Context, bearer, scope, resourceName string) (bool, error)
	GetUserPermissions(ctx context.Context, bearer, scope string) ([]authorizer.UserPermission, error)
}

// ResourceServer is implemented by *resourceserver.ResourceServer.
type ResourceServer interface {
	Registry() *scope.Registry
	CreateResource(ctx context.Context, name string, owner *grantee.Grantee) (*resourceserver.CreatedResource, error)
	DeleteResource(ctx context.Context, name string) error
	ListPermissions(ctx context.Context, opts resourceserver.ListOptions) ([]keycloak.Permission, error)
	UpdatePermission(ctx context.Context, resourceName, sc string, add, remove []grantee.Grantee) (*keycloak.Permission, error)
}

// TeamDirectory is implemented by *teams.Client.
type TeamDirectory interface {
	ListTeams(ctx context.Context, realmRole string) ([]teams.Team, error)
	ListUserTeams(ctx context.Context, username string) ([]teams.Team, error)
	GetUser(ctx context.Context, username string) (keycloak.User, error)
	GetTeam(ctx context.Context, id, realmRole string) (*teams.Team, error)
	GetTeamByName(ctx context.Context, name, realmRole string) (*teams.Team, error)
	GetTeamMembers(ctx context.Context, id, realmRole string) ([]teams.Member, error)
	UpdateTeam(ctx context.Context, id string, name *string, attributes map[string][]string) (*teams.Team, error)
	UpdateMembers(ctx context.Context, id string, usernames []string) ([]teams.Member, error)
}

// WebhookStore is implemented by *webhook.Store.
type WebhookStore interface {
	Create(datasetID string, op webhook.Operation, createdBy string) (*webhook.Token, error)
	List(datasetID string) ([]webhook.Token, error)
	Delete(datasetID, id string) error
	Authorize(datasetID, secret string, op webhook.Operation) (webhook.AuthResult, error)
}
