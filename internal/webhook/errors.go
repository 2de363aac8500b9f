package webhook

import "errors"

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrTokenNotFound is returned when no active token matches.
	ErrTokenNotFound = errors.New("webhook token not found")
	// ErrUnknownOperation is returned for operations other than read and write.
	ErrUnknownOperation = errors.New("unknown webhook token operation")
)
