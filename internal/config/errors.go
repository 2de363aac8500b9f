package config

import (
	"errors"
)

var (
	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrEmptyKeycloakServerURL error if keycloak.serverurl is empty.
	ErrEmptyKeycloakServerURL = errors.New("toml config keycloak.serverurl can not be empty")

	// ErrEmptyKeycloakRealm error if keycloak.realm is empty.
	ErrEmptyKeycloakRealm = errors.New("toml config keycloak.realm can not be empty")

	// ErrEmptyKeycloakClientID error if keycloak.clientid is empty.
	ErrEmptyKeycloakClientID = errors.New("toml config keycloak.clientid can not be empty")
)
