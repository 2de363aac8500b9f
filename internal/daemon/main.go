// Package daemon wires the web service and the scheduled jobs.
package daemon

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/config"
	"github.com/oslokommune/okdata-permission-api/internal/web"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

// ErrNilConfig is returned by New without a config.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
	cron       *cron.Cron
}

// Start runs the scheduler and the web service until SIGINT or SIGTERM.
func (d *Daemon) Start() error {
	if d.cron != nil {
		d.cron.Start()
	}

	go d.webService.WaitShutdown()

	err := d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))

	if d.cron != nil {
		// wait for running jobs
		<-d.cron.Stop().Done()
	}

	return err //nolint:wrapcheck
}

// New creates a Daemon. Jobs are scheduled only when withJobs is set and a
// backup bucket is configured.
func New(ctx context.Context, cfg *config.Config, withJobs bool) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	webhooks, err := NewWebhookStore(cfg)
	if err != nil {
		return nil, err
	}

	rs, err := NewResourceServer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	authz, err := NewAuthorizer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tc, err := NewTeams(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Keycloak.ServerURL, cfg.Keycloak.Realm)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	svc, err := web.New(cfg, &handler.Deps{
		Authenticate: auth.New(verifier),
		Authorizer:   authz,
		Resources:    rs,
		Teams:        tc,
		Webhooks:     webhooks,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	d := &Daemon{cfg: cfg, webService: svc}

	if !withJobs {
		return d, nil
	}

	if cfg.Backup.Bucket == "" {
		log.Warn().Msg("no backup bucket configured, scheduled jobs disabled")
		return d, nil
	}

	store, err := NewBackupStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	d.cron = cron.New()

	if err = Schedule(d.cron, Jobs(cfg, rs, tc, store, NewNotifier(cfg))...); err != nil {
		return nil, err
	}

	return d, nil
}
