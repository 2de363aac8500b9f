package scope

import "errors"

var (
	// ErrUnknownResourceType is returned when a resource type is not registered.
	ErrUnknownResourceType = errors.New("unknown resource type")

	// ErrUnknownScope is returned when a scope is not registered for the resource type it is used with.
	ErrUnknownScope = errors.New("unknown scope")
)
