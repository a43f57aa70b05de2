package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	logFieldsKey contextKey = "logFields"
)

// Authenticate resolves the Authorization header with resolver and stores the
// principal in the request context. When users is set, provider principals
// are matched to their linked local account.
func Authenticate(resolver *auth.Resolver, users auth.UserLookup, recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				reason, status, message := authFailure(err)
				recorder.RecordAuthFailure(reason)
				slog.WarnContext(r.Context(), "authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("reason", reason),
				)
				writeError(w, status, message)
				return
			}

			if !principal.HasLocalUser() && users != nil {
				if user, err := users.GetByExternalSubjectID(r.Context(), principal.SubjectID); err == nil {
					principal.UserID = user.ID
				}
			}

			setLogUser(r.Context(), principal)
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles lets the request through when the gate admits the principal
// for one of roles. With no roles any authenticated principal passes.
func RequireRoles(gate *auth.Gate, recorder metrics.Recorder, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				recorder.RecordAuthFailure("missing_credential")
				writeError(w, http.StatusUnauthorized, auth.ErrMissingCredential.Error())
				return
			}

			if err := gate.Authorize(r.Context(), principal, roles...); err != nil {
				recorder.RecordAuthFailure("insufficient_role")
				slog.WarnContext(r.Context(), "authorization denied",
					slog.String("path", r.URL.Path),
					slog.String("subject", principal.SubjectID),
					slog.String("role", string(principal.Role)),
				)
				writeError(w, http.StatusForbidden, auth.ErrInsufficientRole.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func authFailure(err error) (reason string, status int, message string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "missing_credential", http.StatusUnauthorized, "authorization header with a bearer token is required"
	case errors.Is(err, auth.ErrCredentialExpired):
		return "credential_expired", http.StatusUnauthorized, "token has expired"
	case errors.Is(err, auth.ErrProviderNotConfigured):
		return "provider_not_configured", http.StatusServiceUnavailable, auth.ErrProviderNotConfigured.Error()
	case errors.Is(err, auth.ErrProviderUnreachable):
		return "provider_unreachable", http.StatusServiceUnavailable, auth.ErrProviderUnreachable.Error()
	default:
		return "invalid_credential", http.StatusUnauthorized, "invalid token"
	}
}
