package service

import (
	"context"
	"strings"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

type PatientService struct {
	records[domain.Patient]
	patients repository.PatientRepository
}

func NewPatientService(patients repository.PatientRepository) *PatientService {
	return &PatientService{records: records[domain.Patient]{repo: patients}, patients: patients}
}

type PatientInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=30"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender" validate:"omitempty,oneof=female male other"`
	Goals     string `json:"goals" validate:"max=2000"`
	Notes     string `json:"notes" validate:"max=5000"`
	IsActive  *bool  `json:"isActive"`
}

func (in PatientInput) apply(p *domain.Patient) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	verr := validateStruct(in)
	var birthDate *time.Time
	if in.BirthDate != "" {
		t, err := parseDate(in.BirthDate)
		if err != nil {
			verr.Add("birthDate", "must be a date (YYYY-MM-DD)")
		} else {
			birthDate = &t
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}

	p.Name = in.Name
	p.Email = in.Email
	p.Phone = in.Phone
	p.BirthDate = birthDate
	p.Gender = in.Gender
	p.Goals = in.Goals
	p.Notes = in.Notes
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

func (s *PatientService) Create(ctx context.Context, actor Actor, input PatientInput) (*domain.Patient, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, err
	}

	patient := &domain.Patient{
		ID:             uuid.New(),
		NutritionistID: actor.UserID,
		IsActive:       true,
	}
	if err := input.apply(patient); err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *PatientService) Update(ctx context.Context, actor Actor, id uuid.UUID, input PatientInput) (*domain.Patient, error) {
	patient, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := input.apply(patient); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}
