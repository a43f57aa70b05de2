package testutil

import (
	"context"
	"sync"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/domain"
)

// FakeProvider is a configured identity provider that accepts the tokens
// registered with AddIdentity
type FakeProvider struct {
	mu         sync.Mutex
	identities map[string]*auth.ExternalIdentity
	roles      map[string]domain.Role
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		identities: make(map[string]*auth.ExternalIdentity),
		roles:      make(map[string]domain.Role),
	}
}

// AddIdentity makes token verify as identity
func (p *FakeProvider) AddIdentity(token string, identity auth.ExternalIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[token] = &identity
}

// SetRole stores a role claim for subject
func (p *FakeProvider) SetRole(subject string, role domain.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[subject] = role
}

func (p *FakeProvider) Availability() auth.ProviderAvailability {
	return auth.Configured
}

func (p *FakeProvider) VerifyToken(_ context.Context, token string) (*auth.ExternalIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	identity, ok := p.identities[token]
	if !ok {
		return nil, auth.ErrInvalidCredential
	}
	copied := *identity
	return &copied, nil
}

func (p *FakeProvider) LookupRole(_ context.Context, subject string) (domain.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roles[subject], nil
}
