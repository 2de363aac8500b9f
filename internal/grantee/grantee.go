// Package grantee models the users, teams and clients that can hold a permission.
package grantee

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is the type of grantee.
type Kind string

const (
	// KindUser is a Keycloak user, identified by username.
	KindUser Kind = "user"
	// KindTeam is a team, identified by its bare name (without the group prefix).
	KindTeam Kind = "team"
	// KindClient is a Keycloak client, identified by client id.
	KindClient Kind = "client"
)

var (
	// ErrUnknownKind is returned when a grantee kind is not user, team or client.
	ErrUnknownKind = errors.New("unknown grantee kind")

	// ErrMalformed is returned by Parse for input not of the form kind:id.
	ErrMalformed = errors.New("grantee must be of the form <kind>:<id>")
)

// ParseKind converts s into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUser, KindTeam, KindClient:
		return k, nil
	default:
		return "", errors.Wrap(ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, err := ParseKind(string(k)); err != nil {
		return nil, err
	}

	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Grantee identifies a user, team or client. Two grantees are equal iff both fields match.
type Grantee struct {
	ID   string `json:"user_id"   validate:"required"`
	Kind Kind   `json:"user_type" validate:"required,oneof=user team client"`
}

// User returns a user grantee.
func User(id string) Grantee {
	return Grantee{ID: id, Kind: KindUser}
}

// Team returns a team grantee for the bare team name.
func Team(name string) Grantee {
	return Grantee{ID: name, Kind: KindTeam}
}

// Client returns a client grantee.
func Client(id string) Grantee {
	return Grantee{ID: id, Kind: KindClient}
}

func (g Grantee) String() string {
	return string(g.Kind) + ":" + g.ID
}

// Parse reads a grantee in the form returned by String, e.g. "team:my-team".
func Parse(s string) (Grantee, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Grantee{}, errors.Wrap(ErrMalformed, s)
	}

	k, err := ParseKind(kind)
	if err != nil {
		return Grantee{}, err
	}

	return Grantee{ID: id, Kind: k}, nil
}
