package service

import (
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

// Actor is the authenticated local user a service call is made for
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// readScope restricts practice record reads: nutritionists see their own
// records, patients see records of the patients linked to their account and
// admins see everything.
func (a Actor) readScope() (repository.Scope, error) {
	switch a.Role {
	case domain.RoleAdmin:
		return repository.Scope{}, nil
	case domain.RoleNutritionist:
		return repository.Scope{NutritionistID: a.UserID}, nil
	case domain.RolePatient:
		return repository.Scope{PatientUserID: a.UserID}, nil
	}
	return repository.Scope{}, ErrForbidden
}

// writeScope restricts practice record writes to the owning nutritionist
func (a Actor) writeScope() (repository.Scope, error) {
	if a.Role != domain.RoleNutritionist {
		return repository.Scope{}, ErrForbidden
	}
	return repository.Scope{NutritionistID: a.UserID}, nil
}
