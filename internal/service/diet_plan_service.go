package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

type DietPlanService struct {
	records[domain.DietPlan]
	plans    repository.DietPlanRepository
	patients repository.PatientRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewDietPlanService(plans repository.DietPlanRepository, patients repository.PatientRepository, notifier Notifier, logger *slog.Logger) *DietPlanService {
	return &DietPlanService{
		records:  records[domain.DietPlan]{repo: plans},
		plans:    plans,
		patients: patients,
		notifier: notifier,
		logger:   logger,
	}
}

type DietPlanInput struct {
	PatientID     string      `json:"patientId" validate:"required,uuid"`
	Title         string      `json:"title" validate:"required,max=200"`
	Description   string      `json:"description" validate:"max=5000"`
	DailyCalories int         `json:"dailyCalories" validate:"gte=0,lte=10000"`
	StartDate     string      `json:"startDate" validate:"required"`
	EndDate       string      `json:"endDate"`
	Meals         interface{} `json:"meals"`
	Status        string      `json:"status" validate:"omitempty,oneof=draft active completed"`
}

func (s *DietPlanService) apply(ctx context.Context, actor Actor, in DietPlanInput, plan *domain.DietPlan) (*domain.Patient, error) {
	in.Title = strings.TrimSpace(in.Title)

	verr := validateStruct(in)
	patient := ownedPatient(ctx, s.patients, actor, verr, in.PatientID)

	var start time.Time
	if in.StartDate != "" {
		t, err := parseDate(in.StartDate)
		if err != nil {
			verr.Add("startDate", "must be a date (YYYY-MM-DD)")
		}
		start = t
	}
	var end *time.Time
	if in.EndDate != "" {
		t, err := parseDate(in.EndDate)
		switch {
		case err != nil:
			verr.Add("endDate", "must be a date (YYYY-MM-DD)")
		case !start.IsZero() && t.Before(start):
			verr.Add("endDate", "must not be before startDate")
		default:
			end = &t
		}
	}

	meals := plan.Meals
	if in.Meals != nil {
		meals = toJSON(verr, "meals", in.Meals)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	plan.PatientID = patient.ID
	plan.Title = in.Title
	plan.Description = in.Description
	plan.DailyCalories = in.DailyCalories
	plan.StartDate = start
	plan.EndDate = end
	plan.Meals = meals
	if in.Status != "" {
		plan.Status = domain.DietPlanStatus(in.Status)
	}
	return patient, nil
}

// Create stores the plan and tells the patient about it when the patient
// record is linked to an account
func (s *DietPlanService) Create(ctx context.Context, actor Actor, input DietPlanInput) (*domain.DietPlan, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, err
	}

	plan := &domain.DietPlan{
		ID:             uuid.New(),
		NutritionistID: actor.UserID,
		Status:         domain.DietPlanDraft,
	}
	patient, err := s.apply(ctx, actor, input, plan)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}

	if patient.UserID != nil {
		notify(ctx, s.notifier, s.logger, notification.CreateRequest{
			UserID:   *patient.UserID,
			Type:     domain.NotificationDietPlanCreated,
			Title:    "New diet plan",
			Message:  "Your nutritionist prepared a new diet plan: " + plan.Title,
			Priority: domain.PriorityHigh,
			Data: map[string]interface{}{
				"dietPlanId": plan.ID.String(),
				"planTitle":  plan.Title,
			},
		})
	}
	return plan, nil
}

func (s *DietPlanService) Update(ctx context.Context, actor Actor, id uuid.UUID, input DietPlanInput) (*domain.DietPlan, error) {
	plan, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.apply(ctx, actor, input, plan); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}
