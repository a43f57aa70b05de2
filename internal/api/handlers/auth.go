package handlers

import (
	"net/http"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	rs          *Responder
}

func NewAuthHandler(authService *service.AuthService, rs *Responder) *AuthHandler {
	return &AuthHandler{authService: authService, rs: rs}
}

type AuthResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func authResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{User: result.User, Token: result.Token, ExpiresAt: result.ExpiresAt}
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, "user registered", authResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "login successful", authResponse(result))
}

// Logout is stateless; the client discards its token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.rs.OK(w, "logout successful", nil)
}

// ForgotPassword always answers 200 so it cannot be used to probe for accounts
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "if the email is registered, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "password has been reset", nil)
}

// Profile serves both the session and the provider profile routes
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.authService.Profile(r.Context(), p)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "profile retrieved", user)
}

func (h *AuthHandler) FirebaseLogin(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.authService.FirebaseLogin(r.Context(), p)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "login successful", user)
}

func (h *AuthHandler) HybridRegister(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var req service.HybridRegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.authService.HybridRegister(r.Context(), p, req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, "user registered", authResponse(result))
}

func (h *AuthHandler) HybridLogin(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.authService.HybridLogin(r.Context(), p)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "login successful", authResponse(result))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), p)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "token refreshed", authResponse(result))
}
