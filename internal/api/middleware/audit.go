package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AuditRecorder persists audit log entries
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditLogEntry) error
}

// Audit records every successful mutating request made by an authenticated
// principal. It must run after Authenticate.
func Audit(recorder AuditRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action, mutating := auditAction(r.Method)
			if !mutating {
				next.ServeHTTP(w, r)
				return
			}

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusBadRequest {
				return
			}
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || !principal.HasLocalUser() {
				return
			}

			userID := principal.UserID
			entry := &domain.AuditLogEntry{
				UserID:     &userID,
				Role:       principal.Role,
				Action:     action,
				Resource:   routePattern(r),
				ResourceID: chi.URLParam(r, "id"),
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rec.statusCode,
				IP:         clientIP(r),
				UserAgent:  r.UserAgent(),
			}

			if err := recorder.Record(context.WithoutCancel(r.Context()), entry); err != nil {
				logger.Error("failed to record audit entry",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

func auditAction(method string) (string, bool) {
	switch method {
	case http.MethodPost:
		return "create", true
	case http.MethodPut, http.MethodPatch:
		return "update", true
	case http.MethodDelete:
		return "delete", true
	}
	return "", false
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
