package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RoleSource finds the application role of a principal that carries none
type RoleSource interface {
	LookupRole(ctx context.Context, p *Principal) (domain.Role, error)
}

// ProviderRoleSource reads the role custom claim from the identity provider
type ProviderRoleSource struct {
	provider IdentityProvider
}

func NewProviderRoleSource(provider IdentityProvider) *ProviderRoleSource {
	return &ProviderRoleSource{provider: provider}
}

func (s *ProviderRoleSource) LookupRole(ctx context.Context, p *Principal) (domain.Role, error) {
	if p.Source != SourceProvider {
		return "", nil
	}
	return s.provider.LookupRole(ctx, p.SubjectID)
}

// UserLookup is the part of the user store needed to resolve roles
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByExternalSubjectID(ctx context.Context, subject string) (*domain.User, error)
}

// UserRoleSource reads the role from the local user record linked to the
// principal
type UserRoleSource struct {
	users UserLookup
}

func NewUserRoleSource(users UserLookup) *UserRoleSource {
	return &UserRoleSource{users: users}
}

func (s *UserRoleSource) LookupRole(ctx context.Context, p *Principal) (domain.Role, error) {
	var (
		user *domain.User
		err  error
	)
	switch {
	case p.HasLocalUser():
		user, err = s.users.GetByID(ctx, p.UserID)
	case p.Source == SourceProvider:
		user, err = s.users.GetByExternalSubjectID(ctx, p.SubjectID)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", domain.ErrAccountDisabled
	}
	return user.Role, nil
}

// Gate decides whether a principal may use a route
type Gate struct {
	sources []RoleSource
}

// NewGate creates a gate that consults sources in order when a principal has
// no embedded role
func NewGate(sources ...RoleSource) *Gate {
	return &Gate{sources: sources}
}

// Authorize succeeds when the principal's role is in allowed. A principal
// without a role is enriched from the role sources first; any lookup failure
// denies access. An empty allowed list admits every authenticated principal.
func (g *Gate) Authorize(ctx context.Context, p *Principal, allowed ...domain.Role) error {
	if p == nil {
		return ErrMissingCredential
	}
	if len(allowed) == 0 {
		return nil
	}

	if p.HasRole() {
		if lo.Contains(allowed, p.Role) {
			return nil
		}
		return ErrInsufficientRole
	}

	role, err := g.lookupRole(ctx, p)
	if err != nil {
		slog.WarnContext(ctx, "role enrichment failed",
			slog.String("subject", p.SubjectID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrInsufficientRole, err)
	}
	if !lo.Contains(allowed, role) {
		return ErrInsufficientRole
	}

	p.Role = role
	return nil
}

func (g *Gate) lookupRole(ctx context.Context, p *Principal) (domain.Role, error) {
	var errs []error
	for _, source := range g.sources {
		role, err := source.LookupRole(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if role.IsValid() {
			return role, nil
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", errors.New("no role found")
}
