package resourceserver

import "errors"

var (
	// ErrResourceNotFound is returned when no resource has the requested name.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPermissionNotFound is returned when no permission has the requested name.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrResourceAlreadyExists is returned when creating a resource whose name is taken.
	ErrResourceAlreadyExists = errors.New("resource already exists")

	// ErrCannotRemoveOnlyAdmin is returned when an update would leave a resource without admins.
	ErrCannotRemoveOnlyAdmin = errors.New("cannot remove the only admin of a resource")
)
