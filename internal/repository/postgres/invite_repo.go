package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) *inviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, invite *domain.PatientInvite) error {
	invite.Email = strings.ToLower(strings.TrimSpace(invite.Email))
	return translate(r.db.WithContext(ctx).Create(invite).Error)
}

func (r *inviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PatientInvite, error) {
	var invite domain.PatientInvite
	if err := r.db.WithContext(ctx).First(&invite, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

func (r *inviteRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.PatientInvite, error) {
	var invite domain.PatientInvite
	if err := r.db.WithContext(ctx).First(&invite, "token_hash = ?", hash).Error; err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

func (r *inviteRepository) FindPending(ctx context.Context, nutritionistID uuid.UUID, email string, now time.Time) (*domain.PatientInvite, error) {
	var invite domain.PatientInvite
	err := r.db.WithContext(ctx).
		Where("nutritionist_id = ? AND email = ?", nutritionistID, strings.ToLower(strings.TrimSpace(email))).
		Where("status = ? AND expires_at > ?", domain.InvitePending, now).
		Order("created_at DESC").
		First(&invite).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

func (r *inviteRepository) ListByNutritionist(ctx context.Context, nutritionistID uuid.UUID, page repository.Page) ([]*domain.PatientInvite, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.PatientInvite{}).
		Where("nutritionist_id = ?", nutritionistID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invites []*domain.PatientInvite
	err := query.
		Order("created_at DESC").
		Scopes(paginate(page)).
		Find(&invites).Error
	if err != nil {
		return nil, 0, err
	}
	return invites, total, nil
}

func (r *inviteRepository) Update(ctx context.Context, invite *domain.PatientInvite) error {
	return translate(r.db.WithContext(ctx).Save(invite).Error)
}
