package auth

import "errors"

var (
	// ErrDomainNotAllowed is returned when the login's email domain is not
	// the configured allowed domain.
	ErrDomainNotAllowed = errors.New("email domain not allowed")
	// ErrSSONotConfigured is returned in sso mode until the gateway
	// integration is implemented.
	ErrSSONotConfigured = errors.New("sso authentication not implemented")
)
