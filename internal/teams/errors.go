package teams

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned by New when a required option is missing.
	ErrConfiguration = errors.New("teams client is not configured")

	// ErrTeamNotFound is returned when a group does not exist, is not a team or lacks the requested realm role.
	ErrTeamNotFound = errors.New("team not found")

	// ErrTeamNameExists is returned when renaming a team to a name already taken.
	ErrTeamNameExists = errors.New("team name already exists")

	// ErrUserNotFound is matched by every *UserNotFoundError.
	ErrUserNotFound = errors.New("user not found")

	// ErrTeamsServer wraps unexpected admin API failures.
	ErrTeamsServer = errors.New("teams server error")
)

// UserNotFoundError names the user that could not be found.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("User with username %s not found", e.Username)
}

// Is makes errors.Is(err, ErrUserNotFound) hold.
func (e *UserNotFoundError) Is(target error) bool {
	return target == ErrUserNotFound
}
