package auth

import "errors"

var (
	ErrMissingCredential     = errors.New("missing credential")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrCredentialExpired     = errors.New("credential expired")
	ErrInsufficientRole      = errors.New("insufficient role")
	ErrProviderNotConfigured = errors.New("identity provider not configured")
	ErrProviderUnreachable   = errors.New("identity provider unreachable")
)
