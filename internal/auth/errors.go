package auth

import "errors"

// Sentinels returned by Service. Handlers map them to status codes; anything
// else is an infrastructure failure.
var (
	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid, expired or revoked")
)
