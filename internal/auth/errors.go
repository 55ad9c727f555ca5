package auth

import "errors"

var (
	// ErrUnauthorized represents missing or invalid operator tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSecret is returned when tokens are requested without a signing secret.
	ErrNoSecret = errors.New("token secret is not configured")
)
