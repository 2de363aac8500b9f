package daemon

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oslokommune/okdata-permission-api/internal/authorizer"
	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/config"
	"github.com/oslokommune/okdata-permission-api/internal/db/dsn"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/teams"
	"github.com/oslokommune/okdata-permission-api/internal/webhook"
)

// OpenDB opens the configured database.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dsn.Dialector(cfg.DB)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.DevMode {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	return db, nil
}

// NewWebhookStore opens the database and migrates the webhook token table.
func NewWebhookStore(cfg *config.Config) (*webhook.Store, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	return webhook.New(db) //nolint:wrapcheck
}

// NewResourceServer returns the resource server client of cfg.
func NewResourceServer(ctx context.Context, cfg *config.Config) (*resourceserver.ResourceServer, error) {
	return resourceserver.New(ctx, resourceserver.Options{ //nolint:wrapcheck
		ServerURL:    cfg.Keycloak.ServerURL,
		Realm:        cfg.Keycloak.Realm,
		ClientID:     cfg.Keycloak.ClientID,
		ClientSecret: cfg.Keycloak.ClientSecret,
		PageSize:     cfg.Keycloak.PageSize,
	})
}

// NewAuthorizer returns the UMA authorizer of cfg.
func NewAuthorizer(ctx context.Context, cfg *config.Config) (*authorizer.Authorizer, error) {
	return authorizer.New(ctx, authorizer.Options{ //nolint:wrapcheck
		ServerURL: cfg.Keycloak.ServerURL,
		Realm:     cfg.Keycloak.Realm,
		ClientID:  cfg.Keycloak.ClientID,
	})
}

// NewTeams returns the team client of cfg. A configured admin API URL switches it to proxy mode.
func NewTeams(ctx context.Context, cfg *config.Config) (*teams.Client, error) {
	return teams.New(ctx, teams.Options{ //nolint:wrapcheck
		ServerURL:      cfg.Keycloak.ServerURL,
		Realm:          cfg.Keycloak.Realm,
		AdminAPIURL:    cfg.Teams.AdminAPIURL,
		Username:       cfg.Teams.Username,
		Password:       cfg.Teams.Password,
		ProxyJWTIssuer: cfg.Teams.ProxyJWTIssuer,
		ProxyJWTSecret: []byte(cfg.Teams.ProxyJWTSecret),
		PageSize:       cfg.Keycloak.PageSize,
	})
}

// NewBackupStore returns the S3 snapshot store of cfg.
func NewBackupStore(ctx context.Context, cfg *config.Config) (*backup.Store, error) {
	client, err := backup.NewS3Client(ctx, cfg.Backup)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return backup.NewStore(client, cfg.Backup.Bucket, cfg.Backup.Prefix) //nolint:wrapcheck
}

// NewNotifier returns the Slack notifier of cfg.
func NewNotifier(cfg *config.Config) *backup.Slack {
	return backup.NewSlack(cfg.Slack.WebhookURL, nil)
}
