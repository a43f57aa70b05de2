package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
	rs           *Responder
}

func NewAuditHandler(auditService *service.AuditService, rs *Responder) *AuditHandler {
	return &AuditHandler{auditService: auditService, rs: rs}
}

// List supports resource and action query filters
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	filter := repository.AuditFilter{
		Resource: r.URL.Query().Get("resource"),
		Action:   r.URL.Query().Get("action"),
	}
	page := h.rs.Page(r)
	entries, total, err := h.auditService.List(r.Context(), act, filter, page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "audit entries retrieved", entries, total, page)
}
