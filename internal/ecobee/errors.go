package ecobee

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired indicates the access token is no longer valid. The call can be retried after refreshing the tokens.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrPermission indicates the application is not authorized to access the thermostat.
	ErrPermission = errors.New("not authorized")
	// ErrTransient indicates a temporary error (rate limiting, server errors).
	ErrTransient = errors.New("transient thermostat API error")
	// ErrUnknownThermostat indicates no registered thermostat has the requested name.
	ErrUnknownThermostat = errors.New("unknown thermostat")
)

// Status codes returned by the thermostat API.
const (
	statusOK                = 0
	statusAuthFailed        = 1
	statusNotAuthorized     = 2
	statusProcessingError   = 3
	statusTokenExpired      = 14
	statusTokenDeauthorized = 16
)

// APIError is a failed call to the thermostat API.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("thermostat API: http %d: status %d: %s", e.HTTPStatus, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target != nil && e.class() == target
}

func (e *APIError) class() error {
	switch {
	case e.Code == statusTokenExpired || e.Code == statusAuthFailed || e.HTTPStatus == http.StatusUnauthorized:
		return ErrAuthExpired
	case e.Code == statusNotAuthorized || e.Code == statusTokenDeauthorized || e.HTTPStatus == http.StatusForbidden:
		return ErrPermission
	case e.Code == statusProcessingError || e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= http.StatusInternalServerError:
		return ErrTransient
	default:
		return nil
	}
}
