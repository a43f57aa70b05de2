package service

import (
	"context"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

type AssessmentService struct {
	records[domain.NutritionalAssessment]
	assessments repository.AssessmentRepository
	patients    repository.PatientRepository
	now         func() time.Time
}

func NewAssessmentService(assessments repository.AssessmentRepository, patients repository.PatientRepository) *AssessmentService {
	return &AssessmentService{
		records:     records[domain.NutritionalAssessment]{repo: assessments},
		assessments: assessments,
		patients:    patients,
		now:         time.Now,
	}
}

type AssessmentInput struct {
	PatientID    string                 `json:"patientId" validate:"required,uuid"`
	AssessedAt   string                 `json:"assessedAt"`
	WeightKg     float64                `json:"weightKg" validate:"required,gt=0,lte=500"`
	HeightCm     float64                `json:"heightCm" validate:"required,gt=0,lte=300"`
	BodyFatPct   *float64               `json:"bodyFatPct" validate:"omitempty,gte=0,lte=100"`
	Measurements map[string]interface{} `json:"measurements"`
	Notes        string                 `json:"notes" validate:"max=5000"`
}

func (s *AssessmentService) apply(ctx context.Context, actor Actor, in AssessmentInput, a *domain.NutritionalAssessment) error {
	verr := validateStruct(in)
	patient := ownedPatient(ctx, s.patients, actor, verr, in.PatientID)

	assessedAt := a.AssessedAt
	if in.AssessedAt != "" {
		t, err := parseDate(in.AssessedAt)
		if err != nil {
			verr.Add("assessedAt", "must be an RFC 3339 timestamp or a date")
		}
		assessedAt = t
	}
	if assessedAt.IsZero() {
		assessedAt = s.now()
	}

	measurements := a.Measurements
	if in.Measurements != nil {
		measurements = toJSON(verr, "measurements", in.Measurements)
	}
	if err := verr.Err(); err != nil {
		return err
	}

	a.PatientID = patient.ID
	a.AssessedAt = assessedAt
	a.WeightKg = in.WeightKg
	a.HeightCm = in.HeightCm
	a.BodyFatPct = in.BodyFatPct
	a.Measurements = measurements
	a.Notes = in.Notes
	a.ComputeBMI()
	return nil
}

func (s *AssessmentService) Create(ctx context.Context, actor Actor, input AssessmentInput) (*domain.NutritionalAssessment, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, err
	}

	assessment := &domain.NutritionalAssessment{ID: uuid.New(), NutritionistID: actor.UserID}
	if err := s.apply(ctx, actor, input, assessment); err != nil {
		return nil, err
	}
	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *AssessmentService) Update(ctx context.Context, actor Actor, id uuid.UUID, input AssessmentInput) (*domain.NutritionalAssessment, error) {
	assessment, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, actor, input, assessment); err != nil {
		return nil, err
	}
	if err := s.assessments.Update(ctx, assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}
