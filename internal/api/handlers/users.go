package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/service"
)

type UserHandler struct {
	userService *service.UserService
	rs          *Responder
}

func NewUserHandler(userService *service.UserService, rs *Responder) *UserHandler {
	return &UserHandler{userService: userService, rs: rs}
}

type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := h.rs.Page(r)
	users, total, err := h.userService.List(r.Context(), domain.Role(r.URL.Query().Get("role")), page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "users retrieved", users, total, page)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "user retrieved", user)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var req UpdateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.userService.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "role updated", user)
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.userService.SetActive(r.Context(), act, id, active)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	message := "user deactivated"
	if active {
		message = "user activated"
	}
	h.rs.OK(w, message, user)
}
