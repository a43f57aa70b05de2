package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/service"
)

type InviteHandler struct {
	inviteService *service.InviteService
	rs            *Responder
}

func NewInviteHandler(inviteService *service.InviteService, rs *Responder) *InviteHandler {
	return &InviteHandler{inviteService: inviteService, rs: rs}
}

// InviteResponse includes the raw token, which is never shown again
type InviteResponse struct {
	Invite *domain.PatientInvite `json:"invite"`
	Token  string                `json:"token"`
}

type AcceptInviteRequest struct {
	Token string `json:"token"`
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input service.InviteInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.inviteService.Create(r.Context(), act, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, "invite created", InviteResponse{Invite: result.Invite, Token: result.Token})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	page := h.rs.Page(r)
	invites, total, err := h.inviteService.List(r.Context(), act, page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "invites retrieved", invites, total, page)
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	invite, err := h.inviteService.Revoke(r.Context(), act, id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "invite revoked", invite)
}

func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var req AcceptInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	invite, err := h.inviteService.Accept(r.Context(), act, req.Token)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "invite accepted", invite)
}
