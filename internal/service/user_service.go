package service

import (
	"context"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

// UserService is the admin surface over user accounts. Accounts are never
// deleted, only deactivated.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) List(ctx context.Context, role domain.Role, page repository.Page) ([]*domain.User, int64, error) {
	if role != "" && !role.IsValid() {
		return nil, 0, domain.NewValidationError("role", domain.ErrInvalidRole.Error())
	}
	return s.users.List(ctx, role, page)
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error) {
	if !role.IsValid() {
		return nil, domain.NewValidationError("role", domain.ErrInvalidRole.Error())
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetActive(ctx context.Context, actor Actor, id uuid.UUID, active bool) (*domain.User, error) {
	if !active && actor.UserID == id {
		return nil, domain.NewValidationError("id", "admins cannot deactivate their own account")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
