package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// OutcomeKind tags the result of one verification strategy
type OutcomeKind int

const (
	// Skipped means the strategy could not be applied (e.g. provider not configured)
	Skipped OutcomeKind = iota
	Verified
	Rejected
)

type Outcome struct {
	Kind      OutcomeKind
	Principal *Principal
	Err       error
}

func verified(p *Principal) Outcome { return Outcome{Kind: Verified, Principal: p} }
func rejected(err error) Outcome    { return Outcome{Kind: Rejected, Err: err} }
func skipped(err error) Outcome     { return Outcome{Kind: Skipped, Err: err} }

// Strategy verifies a bearer token one way
type Strategy interface {
	Name() string
	Verify(ctx context.Context, token string) Outcome
}

// LocalStrategy accepts session tokens issued by this application
type LocalStrategy struct {
	issuer *TokenIssuer
}

func NewLocalStrategy(issuer *TokenIssuer) *LocalStrategy {
	return &LocalStrategy{issuer: issuer}
}

func (s *LocalStrategy) Name() string { return string(SourceLocal) }

func (s *LocalStrategy) Verify(_ context.Context, token string) Outcome {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return rejected(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return rejected(ErrInvalidCredential)
	}

	return verified(&Principal{
		SubjectID: claims.Subject,
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		Source:    SourceLocal,
	})
}

// ProviderStrategy accepts bearer tokens issued by the identity provider
type ProviderStrategy struct {
	provider IdentityProvider
}

func NewProviderStrategy(provider IdentityProvider) *ProviderStrategy {
	return &ProviderStrategy{provider: provider}
}

func (s *ProviderStrategy) Name() string { return string(SourceProvider) }

func (s *ProviderStrategy) Verify(ctx context.Context, token string) Outcome {
	if s.provider == nil || s.provider.Availability() != Configured {
		return skipped(ErrProviderNotConfigured)
	}

	identity, err := s.provider.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrProviderNotConfigured) {
			return skipped(err)
		}
		return rejected(ErrInvalidCredential)
	}

	return verified(&Principal{
		SubjectID:     identity.Subject,
		Email:         identity.Email,
		DisplayName:   identity.DisplayName,
		Role:          identity.Role,
		EmailVerified: identity.EmailVerified,
		Source:        SourceProvider,
	})
}

// Resolver turns an Authorization header into a Principal by trying its
// strategies in order. The first strategy that verifies the token wins.
type Resolver struct {
	strategies []Strategy
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// NewHybridResolver tries the local session token first and the identity
// provider second
func NewHybridResolver(issuer *TokenIssuer, provider IdentityProvider) *Resolver {
	return NewResolver(NewLocalStrategy(issuer), NewProviderStrategy(provider))
}

// NewProviderResolver only accepts identity provider tokens
func NewProviderResolver(provider IdentityProvider) *Resolver {
	return NewResolver(NewProviderStrategy(provider))
}

// Resolve verifies the raw Authorization header value
func (r *Resolver) Resolve(ctx context.Context, authorizationHeader string) (*Principal, error) {
	token, err := BearerToken(authorizationHeader)
	if err != nil {
		return nil, err
	}
	return r.ResolveToken(ctx, token)
}

// ResolveToken verifies a bare token. When every strategy fails, expiry is
// reported in preference to a generic invalid credential; when none could be
// applied the provider configuration error is returned.
func (r *Resolver) ResolveToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	var expired, attempted bool
	var skipErr error
	for _, s := range r.strategies {
		outcome := s.Verify(ctx, token)
		switch outcome.Kind {
		case Verified:
			return outcome.Principal, nil
		case Rejected:
			attempted = true
			if errors.Is(outcome.Err, ErrCredentialExpired) {
				expired = true
			}
		case Skipped:
			skipErr = outcome.Err
		}
	}

	switch {
	case expired:
		return nil, ErrCredentialExpired
	case !attempted && skipErr != nil:
		return nil, skipErr
	default:
		return nil, ErrInvalidCredential
	}
}

// BearerToken extracts the token from a "Bearer <token>" header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMissingCredential
	}
	return parts[1], nil
}
