package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/service"
)

type MetricsHandler struct {
	metricsService *service.MetricsService
	rs             *Responder
}

func NewMetricsHandler(metricsService *service.MetricsService, rs *Responder) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService, rs: rs}
}

func (h *MetricsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	summary, err := h.metricsService.Summary(r.Context(), act)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "metrics retrieved", summary)
}
