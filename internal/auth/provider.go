package auth

import (
	"context"

	"github.com/dom/nutrition-practice/internal/domain"
)

// ProviderAvailability tells callers whether federated identity can be used at all
type ProviderAvailability int

const (
	NotConfigured ProviderAvailability = iota
	Configured
)

func (a ProviderAvailability) String() string {
	if a == Configured {
		return "configured"
	}
	return "not_configured"
}

// ExternalIdentity is what the identity provider vouches for after verifying
// one of its bearer tokens
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	Role          domain.Role
}

// IdentityProvider verifies bearer tokens issued by an external identity service
type IdentityProvider interface {
	Availability() ProviderAvailability
	VerifyToken(ctx context.Context, token string) (*ExternalIdentity, error)
	// LookupRole returns the application role claim stored with the provider,
	// or an empty role when none is set
	LookupRole(ctx context.Context, subject string) (domain.Role, error)
}

// NotConfiguredProvider stands in when no provider credentials are present
type NotConfiguredProvider struct{}

func (NotConfiguredProvider) Availability() ProviderAvailability {
	return NotConfigured
}

func (NotConfiguredProvider) VerifyToken(context.Context, string) (*ExternalIdentity, error) {
	return nil, ErrProviderNotConfigured
}

func (NotConfiguredProvider) LookupRole(context.Context, string) (domain.Role, error) {
	return "", ErrProviderNotConfigured
}
