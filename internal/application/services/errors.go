package services

import "errors"

var (
	// ErrNotAuthenticated is returned when a request has no resolved identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned for any failed sign-in attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
