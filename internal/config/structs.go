package config

import (
	"time"

	"github.com/oslokommune/okdata-permission-api/internal/logger"
)

const masked = "********"

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Webserver Webserver
	Keycloak  Keycloak
	Teams     Teams
	Backup    Backup
	Slack     Slack
	Jobs      Jobs
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool   // disable recover middleware
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	URL            string // public base url, used as CORS origin when set
}

// Keycloak holds the resource server client settings.
type Keycloak struct {
	ServerURL    string // e.g. https://login.example.org, without the /auth suffix
	Realm        string
	ClientID     string // resource server client
	ClientSecret string
	PageSize     int // admin/policy page size, 0 = keycloak.DefaultPageSize
}

// Teams holds the team admin user settings. AdminAPIURL switches to proxy mode.
type Teams struct {
	Username       string
	Password       string
	AdminAPIURL    string
	ProxyJWTIssuer string
	ProxyJWTSecret string
}

// Backup holds the S3 location of permission snapshots.
type Backup struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // custom S3 endpoint, e.g. minio
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	MaxAge       time.Duration // how far back LoadLatest looks
}

// Slack holds the incoming webhook used for job notifications.
type Slack struct {
	WebhookURL string
}

// Jobs holds cron specs of the scheduled jobs. An empty spec disables the job.
type Jobs struct {
	Backup     string
	CheckUsers string
}

// Masked returns a copy of c with every secret replaced.
func (c *Config) Masked() Config {
	cp := *c

	for _, s := range []*string{
		&cp.DB.Password,
		&cp.Keycloak.ClientSecret,
		&cp.Teams.Password,
		&cp.Teams.ProxyJWTSecret,
		&cp.Backup.SecretKey,
		&cp.Slack.WebhookURL,
	} {
		if *s != "" {
			*s = masked
		}
	}

	return cp
}
