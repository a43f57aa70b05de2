package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

const (
	reminderLeadTime        = 24 * time.Hour
	defaultDurationMinutes  = 60
	consultationTimeDisplay = "Mon, 02 Jan 2006 15:04 MST"
)

type ConsultationService struct {
	records[domain.Consultation]
	consultations repository.ConsultationRepository
	patients      repository.PatientRepository
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
}

func NewConsultationService(consultations repository.ConsultationRepository, patients repository.PatientRepository, notifier Notifier, logger *slog.Logger) *ConsultationService {
	return &ConsultationService{
		records:       records[domain.Consultation]{repo: consultations},
		consultations: consultations,
		patients:      patients,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock replaces the clock used to schedule reminders
func (s *ConsultationService) WithClock(now func() time.Time) *ConsultationService {
	s.now = now
	return s
}

type ConsultationInput struct {
	PatientID       string `json:"patientId" validate:"required,uuid"`
	ScheduledAt     string `json:"scheduledAt" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,gte=5,lte=480"`
	Type            string `json:"type" validate:"omitempty,oneof=initial follow_up online"`
	Status          string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled no_show"`
	Notes           string `json:"notes" validate:"max=5000"`
}

func (s *ConsultationService) apply(ctx context.Context, actor Actor, in ConsultationInput, c *domain.Consultation) (*domain.Patient, error) {
	verr := validateStruct(in)
	patient := ownedPatient(ctx, s.patients, actor, verr, in.PatientID)

	var scheduledAt time.Time
	if in.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, in.ScheduledAt)
		if err != nil {
			verr.Add("scheduledAt", "must be an RFC 3339 timestamp")
		}
		scheduledAt = t
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	c.PatientID = patient.ID
	c.ScheduledAt = scheduledAt
	c.Notes = in.Notes
	if in.DurationMinutes != 0 {
		c.DurationMinutes = in.DurationMinutes
	}
	if in.Type != "" {
		c.Type = domain.ConsultationType(in.Type)
	}
	if in.Status != "" {
		c.Status = domain.ConsultationStatus(in.Status)
	}
	return patient, nil
}

// Create schedules a consultation. A linked patient account is told about it
// right away and reminded a day ahead when the consultation is further out
// than that.
func (s *ConsultationService) Create(ctx context.Context, actor Actor, input ConsultationInput) (*domain.Consultation, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, err
	}

	c := &domain.Consultation{
		ID:              uuid.New(),
		NutritionistID:  actor.UserID,
		DurationMinutes: defaultDurationMinutes,
		Type:            domain.ConsultationFollowUp,
		Status:          domain.ConsultationScheduled,
	}
	patient, err := s.apply(ctx, actor, input, c)
	if err != nil {
		return nil, err
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}

	if patient.UserID != nil && c.Status == domain.ConsultationScheduled {
		s.notifyPatient(ctx, *patient.UserID, c)
	}
	return c, nil
}

func (s *ConsultationService) Update(ctx context.Context, actor Actor, id uuid.UUID, input ConsultationInput) (*domain.Consultation, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.apply(ctx, actor, input, c); err != nil {
		return nil, err
	}
	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ConsultationService) notifyPatient(ctx context.Context, userID uuid.UUID, c *domain.Consultation) {
	data := map[string]interface{}{
		"consultationId":   c.ID.String(),
		"scheduledAt":      c.ScheduledAt.UTC().Format(consultationTimeDisplay),
		"durationMinutes":  c.DurationMinutes,
		"consultationType": string(c.Type),
	}

	notify(ctx, s.notifier, s.logger, notification.CreateRequest{
		UserID:   userID,
		Type:     domain.NotificationConsultationScheduled,
		Title:    "Consultation scheduled",
		Message:  "A consultation has been scheduled with your nutritionist.",
		Priority: domain.PriorityHigh,
		Data:     data,
	})

	remindAt := c.ScheduledAt.Add(-reminderLeadTime)
	if remindAt.Before(s.now()) {
		return
	}
	expiresAt := c.ScheduledAt
	notify(ctx, s.notifier, s.logger, notification.CreateRequest{
		UserID:       userID,
		Type:         domain.NotificationConsultationReminder,
		Title:        "Consultation tomorrow",
		Message:      "Reminder: you have a consultation tomorrow.",
		Data:         data,
		ScheduledFor: &remindAt,
		ExpiresAt:    &expiresAt,
	})
}
