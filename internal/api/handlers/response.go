package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dom/nutrition-practice/internal/api/middleware"
	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Envelope is the body of every JSON response
type Envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       interface{}         `json:"data,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
	Errors     []domain.FieldError `json:"errors,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Responder writes envelopes and maps service errors to status codes
type Responder struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewResponder(cfg *config.Config, logger *slog.Logger) *Responder {
	return &Responder{cfg: cfg, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (rs *Responder) OK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func (rs *Responder) Created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func (rs *Responder) List(w http.ResponseWriter, message string, data interface{}, total int64, page repository.Page) {
	pages := 0
	if page.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(page.Limit)))
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: message,
		Data:    data,
		Pagination: &Pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: total,
			Pages: pages,
		},
	})
}

// Error writes the failure envelope for err
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, Envelope{Message: "validation failed", Errors: verr.Fields})
		return
	}

	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		rs.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if rs.cfg.IsDevelopment() {
			message = err.Error()
		}
	}
	writeJSON(w, status, Envelope{Message: message})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrMissingCredential),
		errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrCredentialExpired):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, auth.ErrInsufficientRole),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, domain.ErrAccountDisabled):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, domain.ErrInviteExpired),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidType):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, domain.ErrNotificationNotFound),
		errors.Is(err, service.ErrInviteNotFound),
		errors.Is(err, service.ErrPatientNotFound),
		errors.Is(err, service.ErrNotRegistered):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "resource already exists"
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrAccountExists),
		errors.Is(err, service.ErrInviteExists),
		errors.Is(err, domain.ErrNotificationNotPending),
		errors.Is(err, domain.ErrInviteNotPending):
		return http.StatusConflict, err.Error()

	case errors.Is(err, auth.ErrProviderNotConfigured),
		errors.Is(err, auth.ErrProviderUnreachable):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// Page reads page and limit query parameters, clamped to the configured bounds
func (rs *Responder) Page(r *http.Request) repository.Page {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", rs.cfg.DefaultPageSize)
	if limit < 1 {
		limit = rs.cfg.DefaultPageSize
	}
	return repository.Page{Page: page, Limit: min(limit, rs.cfg.MaxPageSize)}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", "must be a valid JSON object")
	}
	return nil
}

func pathID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(key, "must be a valid UUID")
	}
	return id, nil
}

func principal(r *http.Request) (*auth.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return nil, auth.ErrMissingCredential
	}
	return p, nil
}

// actor is the local account a request acts for. The router resolves the
// role before handlers run.
func actor(r *http.Request) (service.Actor, error) {
	p, err := principal(r)
	if err != nil {
		return service.Actor{}, err
	}
	if !p.HasLocalUser() {
		return service.Actor{}, service.ErrNotRegistered
	}
	return service.Actor{UserID: p.UserID, Role: p.Role}, nil
}
