package keycloak

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingExpiry is returned when an access token carries no exp claim.
var ErrMissingExpiry = errors.New("access token has no exp claim")

// ProviderError is returned for every non-2xx response from Keycloak.
type ProviderError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("keycloak: %s %s returned %d", e.Method, e.URL, e.StatusCode)
}

// ErrorDescription returns Keycloak's own description of the error, if any.
func (e *ProviderError) ErrorDescription() string {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorMessage     string `json:"errorMessage"`
	}

	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}

	switch {
	case body.ErrorDescription != "":
		return body.ErrorDescription
	case body.ErrorMessage != "":
		return body.ErrorMessage
	default:
		return body.Error
	}
}

// IsStatus reports whether err is a ProviderError with the given status code.
func IsStatus(err error, code int) bool {
	var pe *ProviderError

	return errors.As(err, &pe) && pe.StatusCode == code
}

// DiscoveryError is returned when the UMA configuration can not be fetched or parsed.
type DiscoveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("uma discovery %s: status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("uma discovery %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
