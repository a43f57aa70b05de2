package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	rs                  *Responder
}

func NewNotificationHandler(notificationService *service.NotificationService, rs *Responder) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, rs: rs}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	page := h.rs.Page(r)
	status := domain.NotificationStatus(r.URL.Query().Get("status"))
	notifications, total, err := h.notificationService.List(r.Context(), act, status, page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "notifications retrieved", notifications, total, page)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	n, err := h.notificationService.Get(r.Context(), act, id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "notification retrieved", n)
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input service.NotificationInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	n, err := h.notificationService.Create(r.Context(), act, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, "notification created", n)
}

func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	n, err := h.notificationService.Cancel(r.Context(), act, id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "notification cancelled", n)
}
