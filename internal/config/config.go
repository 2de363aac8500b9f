// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. OKDATA_PERMISSION_API_KEYCLOAK_REALM.
	EnvPrefix = "OKDATA_PERMISSION_API"
	// JSONConfigEnv holds a JSON document merged over the file config.
	JSONConfigEnv = EnvPrefix + "_CONFIG_JSON"

	defaultShutDownTime   = 5
	defaultBackupMaxAge   = 12 * 7 * 24 * time.Hour
	defaultBackupPrefix   = "permissions"
	defaultBackupSchedule = "0 3 * * *"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigName("main")
	v.SetConfigType("toml")
	v.AddConfigPath(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	if configAsJSON := os.Getenv(JSONConfigEnv); configAsJSON != "" {
		c, err = decodeAndMergeConfig(c, configAsJSON)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("webserver.shutdowntime", defaultShutDownTime)
	v.SetDefault("backup.prefix", defaultBackupPrefix)
	v.SetDefault("backup.maxage", defaultBackupMaxAge)
	v.SetDefault("jobs.backup", defaultBackupSchedule)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config from "+JSONConfigEnv)
	}

	return c, nil
}

// DumpConfigJSON config as JSON String. Secrets are masked.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c.Masked()); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate the settings every command needs.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Keycloak.ServerURL == "" {
		return errors.Wrap(ErrEmptyKeycloakServerURL, invalidErrMessage)
	}

	if c.Keycloak.Realm == "" {
		return errors.Wrap(ErrEmptyKeycloakRealm, invalidErrMessage)
	}

	if c.Keycloak.ClientID == "" {
		return errors.Wrap(ErrEmptyKeycloakClientID, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Backup.MaxAge == 0 {
		c.Backup.MaxAge = defaultBackupMaxAge
	}

	return nil
}
