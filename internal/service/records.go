package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// records holds the ownership checks shared by every practice record service
type records[T any] struct {
	repo repository.RecordRepository[T]
}

func (r records[T]) List(ctx context.Context, actor Actor, filter repository.RecordFilter, page repository.Page) ([]*T, int64, error) {
	scope, err := actor.readScope()
	if err != nil {
		return nil, 0, err
	}
	return r.repo.List(ctx, scope, filter, page)
}

func (r records[T]) Get(ctx context.Context, actor Actor, id uuid.UUID) (*T, error) {
	scope, err := actor.readScope()
	if err != nil {
		return nil, err
	}
	return r.repo.GetByID(ctx, id, scope)
}

// Delete soft deletes a record owned by the acting nutritionist
func (r records[T]) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	scope, err := actor.writeScope()
	if err != nil {
		return err
	}
	return r.repo.Delete(ctx, id, scope)
}

func (r records[T]) owned(ctx context.Context, actor Actor, id uuid.UUID) (*T, error) {
	scope, err := actor.writeScope()
	if err != nil {
		return nil, err
	}
	return r.repo.GetByID(ctx, id, scope)
}

// ownedPatient resolves the patient a record is written for. A patient that
// belongs to another nutritionist is reported as a field error.
func ownedPatient(ctx context.Context, patients repository.PatientRepository, actor Actor, verr *domain.ValidationError, rawID string) *domain.Patient {
	if rawID == "" {
		return nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil
	}
	scope, err := actor.writeScope()
	if err != nil {
		return nil
	}

	patient, err := patients.GetByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			verr.Add("patientId", ErrPatientNotFound.Error())
		} else {
			verr.Add("patientId", "could not be loaded")
		}
		return nil
	}
	return patient
}

func toJSON(verr *domain.ValidationError, field string, value interface{}) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		verr.Add(field, "must be valid JSON")
		return nil
	}
	return datatypes.JSON(raw)
}
