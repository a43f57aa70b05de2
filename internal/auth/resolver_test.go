package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider accepts tokens listed in identities
type fakeProvider struct {
	identities map[string]*auth.ExternalIdentity
	roles      map[string]domain.Role
	lookupErr  error
	calls      int
}

func (p *fakeProvider) Availability() auth.ProviderAvailability { return auth.Configured }

func (p *fakeProvider) VerifyToken(_ context.Context, token string) (*auth.ExternalIdentity, error) {
	p.calls++
	if id, ok := p.identities[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidCredential
}

func (p *fakeProvider) LookupRole(_ context.Context, subject string) (domain.Role, error) {
	if p.lookupErr != nil {
		return "", p.lookupErr
	}
	role, ok := p.roles[subject]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "abc", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer ", wantErr: true},
		{header: "Bearer a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := auth.BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrMissingCredential)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_HybridOrdering(t *testing.T) {
	clock := newClock()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, auth.WithClock(clock.Now))
	provider := &fakeProvider{identities: map[string]*auth.ExternalIdentity{
		"provider-token": {Subject: "fb-1", Email: "fb@x.com", EmailVerified: true, DisplayName: "Fb"},
	}}
	resolver := auth.NewHybridResolver(issuer, provider)
	ctx := context.Background()

	userID := uuid.New()
	local, _, err := issuer.Issue(userID.String(), "ana@x.com", domain.RolePatient)
	require.NoError(t, err)

	t.Run("local token resolves without calling the provider", func(t *testing.T) {
		provider.calls = 0
		p, err := resolver.Resolve(ctx, "Bearer "+local)
		require.NoError(t, err)
		assert.Equal(t, auth.SourceLocal, p.Source)
		assert.Equal(t, userID, p.UserID)
		assert.Equal(t, domain.RolePatient, p.Role)
		assert.Zero(t, provider.calls)
	})

	t.Run("provider token falls through to the provider", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, "Bearer provider-token")
		require.NoError(t, err)
		assert.Equal(t, auth.SourceProvider, p.Source)
		assert.Equal(t, "fb-1", p.SubjectID)
		assert.False(t, p.HasRole())
		assert.False(t, p.HasLocalUser())
		assert.True(t, p.EmailVerified)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "Bearer garbage")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "")
		assert.ErrorIs(t, err, auth.ErrMissingCredential)
	})

	t.Run("expired local token reports expiry", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		defer clock.Advance(-2 * time.Hour)

		_, err := resolver.Resolve(ctx, "Bearer "+local)
		assert.ErrorIs(t, err, auth.ErrCredentialExpired)
	})
}

func TestResolver_ProviderNotConfigured(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	ctx := context.Background()

	t.Run("provider-only resolver reports configuration error", func(t *testing.T) {
		resolver := auth.NewProviderResolver(auth.NotConfiguredProvider{})
		_, err := resolver.Resolve(ctx, "Bearer anything")
		assert.ErrorIs(t, err, auth.ErrProviderNotConfigured)
	})

	t.Run("hybrid resolver still accepts local tokens", func(t *testing.T) {
		resolver := auth.NewHybridResolver(issuer, auth.NotConfiguredProvider{})
		token, _, err := issuer.Issue(uuid.NewString(), "a@b.c", domain.RoleAdmin)
		require.NoError(t, err)

		p, err := resolver.Resolve(ctx, "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, p.Role)
	})

	t.Run("hybrid resolver rejects foreign tokens as invalid", func(t *testing.T) {
		resolver := auth.NewHybridResolver(issuer, auth.NotConfiguredProvider{})
		_, err := resolver.Resolve(ctx, "Bearer foreign")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
		assert.False(t, errors.Is(err, auth.ErrProviderNotConfigured))
	})
}
