package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/google/uuid"
)

// RecordService is the CRUD surface shared by the practice record services
type RecordService[T any, In any] interface {
	List(ctx context.Context, actor service.Actor, filter repository.RecordFilter, page repository.Page) ([]*T, int64, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*T, error)
	Create(ctx context.Context, actor service.Actor, input In) (*T, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, input In) (*T, error)
	Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error
}

// RecordHandler serves list, get, create, update and delete for one record
// kind. noun is used in response messages.
type RecordHandler[T any, In any] struct {
	svc  RecordService[T, In]
	rs   *Responder
	noun string
}

func NewRecordHandler[T any, In any](svc RecordService[T, In], rs *Responder, noun string) *RecordHandler[T, In] {
	return &RecordHandler[T, In]{svc: svc, rs: rs, noun: noun}
}

func NewPatientHandler(svc *service.PatientService, rs *Responder) *RecordHandler[domain.Patient, service.PatientInput] {
	return NewRecordHandler[domain.Patient, service.PatientInput](svc, rs, "patient")
}

func NewAssessmentHandler(svc *service.AssessmentService, rs *Responder) *RecordHandler[domain.NutritionalAssessment, service.AssessmentInput] {
	return NewRecordHandler[domain.NutritionalAssessment, service.AssessmentInput](svc, rs, "nutritional assessment")
}

func NewDietPlanHandler(svc *service.DietPlanService, rs *Responder) *RecordHandler[domain.DietPlan, service.DietPlanInput] {
	return NewRecordHandler[domain.DietPlan, service.DietPlanInput](svc, rs, "diet plan")
}

func NewConsultationHandler(svc *service.ConsultationService, rs *Responder) *RecordHandler[domain.Consultation, service.ConsultationInput] {
	return NewRecordHandler[domain.Consultation, service.ConsultationInput](svc, rs, "consultation")
}

func (h *RecordHandler[T, In]) List(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	filter, err := recordFilter(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	page := h.rs.Page(r)
	items, total, err := h.svc.List(r.Context(), act, filter, page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, h.noun+"s retrieved", items, total, page)
}

func (h *RecordHandler[T, In]) Get(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	item, err := h.svc.Get(r.Context(), act, id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, h.noun+" retrieved", item)
}

func (h *RecordHandler[T, In]) Create(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input In
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	item, err := h.svc.Create(r.Context(), act, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, h.noun+" created", item)
}

func (h *RecordHandler[T, In]) Update(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input In
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	item, err := h.svc.Update(r.Context(), act, id, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, h.noun+" updated", item)
}

func (h *RecordHandler[T, In]) Delete(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), act, id); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, h.noun+" deleted", nil)
}

func actorAndID(r *http.Request) (service.Actor, uuid.UUID, error) {
	act, err := actor(r)
	if err != nil {
		return service.Actor{}, uuid.Nil, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return service.Actor{}, uuid.Nil, err
	}
	return act, id, nil
}

// recordFilter reads patientId, status, from and to. Dates are RFC3339.
func recordFilter(r *http.Request) (repository.RecordFilter, error) {
	q := r.URL.Query()
	filter := repository.RecordFilter{Status: q.Get("status")}
	verr := &domain.ValidationError{}

	if raw := q.Get("patientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("patientId", "must be a valid UUID")
		}
		filter.PatientID = id
	}
	for _, bound := range []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			verr.Add(bound.key, "must be an RFC3339 timestamp")
			continue
		}
		*bound.dst = &t
	}

	return filter, verr.Err()
}
