package service

import (
	"context"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
)

type AuditService struct {
	audit repository.AuditRepository
}

func NewAuditService(audit repository.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

func (s *AuditService) Record(ctx context.Context, entry *domain.AuditLogEntry) error {
	return s.audit.Create(ctx, entry)
}

// List returns every entry to admins and their own entries to nutritionists
func (s *AuditService) List(ctx context.Context, actor Actor, filter repository.AuditFilter, page repository.Page) ([]*domain.AuditLogEntry, int64, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleNutritionist:
		filter.UserID = actor.UserID
	default:
		return nil, 0, ErrForbidden
	}
	return s.audit.List(ctx, filter, page)
}
