package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"google.golang.org/api/option"
)

// firebaseClient is the subset of the Firebase Admin auth client in use
type firebaseClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	GetUser(ctx context.Context, uid string) (*fbauth.UserRecord, error)
}

// FirebaseProvider adapts Firebase Authentication to IdentityProvider
type FirebaseProvider struct {
	client firebaseClient
}

func NewFirebaseProvider(client firebaseClient) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

// NewIdentityProvider builds the provider once at startup. Without a complete
// set of service account credentials it returns a NotConfiguredProvider.
func NewIdentityProvider(ctx context.Context, cfg *config.Config) (IdentityProvider, error) {
	if !cfg.FirebaseConfigured() {
		return NotConfiguredProvider{}, nil
	}

	credentials, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   cfg.FirebaseProjectID,
		"private_key":  strings.ReplaceAll(cfg.FirebasePrivateKey, `\n`, "\n"),
		"client_email": cfg.FirebaseClientEmail,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("encode firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}

	return NewFirebaseProvider(client), nil
}

func (p *FirebaseProvider) Availability() ProviderAvailability {
	return Configured
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (*ExternalIdentity, error) {
	verified, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	identity := &ExternalIdentity{
		Subject:       verified.UID,
		Email:         claimString(verified.Claims, "email"),
		EmailVerified: claimBool(verified.Claims, "email_verified"),
		DisplayName:   claimString(verified.Claims, "name"),
	}
	if role := domain.Role(claimString(verified.Claims, "role")); role.IsValid() {
		identity.Role = role
	}
	return identity, nil
}

func (p *FirebaseProvider) LookupRole(ctx context.Context, subject string) (domain.Role, error) {
	record, err := p.client.GetUser(ctx, subject)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return "", fmt.Errorf("subject %s: %w", subject, domain.ErrNotFound)
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	role := domain.Role(claimString(record.CustomClaims, "role"))
	if !role.IsValid() {
		return "", nil
	}
	return role, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func claimBool(claims map[string]interface{}, key string) bool {
	v, _ := claims[key].(bool)
	return v
}
